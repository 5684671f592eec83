package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-factory-ops/internal/handler"
	"go-factory-ops/internal/ledger"
	"go-factory-ops/internal/middleware"
	"go-factory-ops/internal/model"
	"go-factory-ops/internal/repository"
	"go-factory-ops/internal/service"
	"go-factory-ops/internal/ws"
	"go-factory-ops/pkg/database"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// 1. Load env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// 2. Setup database
	db := database.ConnectDB()
	db.AutoMigrate(&model.Material{}, &model.Machine{}, &model.Allocation{}, &model.AllocationHistory{})

	// 3. Setup websocket hub
	wsHub := ws.NewHub()
	go wsHub.Run()

	// 4. Dependency injection (wiring layers)
	materialRepo := repository.NewMaterialRepo(db)
	machineRepo := repository.NewMachineRepo(db)
	allocationRepo := repository.NewAllocationRepo(db)
	historyRepo := repository.NewHistoryRepo(db)

	allocationLedger := ledger.NewLedger(db, materialRepo, machineRepo, allocationRepo, historyRepo)

	allocationService := service.NewAllocationService(allocationLedger, materialRepo, machineRepo, wsHub)
	materialService := service.NewMaterialService(materialRepo)
	machineService := service.NewMachineService(machineRepo)
	dashboardService := service.NewDashboardService(materialRepo, machineRepo, allocationRepo, historyRepo)

	allocationHandler := handler.NewAllocationHandler(allocationService)
	materialHandler := handler.NewMaterialHandler(materialService)
	machineHandler := handler.NewMachineHandler(machineService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Factory Ops v1.0",
	})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// 6. Routes
	api := app.Group("/api/v1", middleware.ActorContext())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Material management (external flow around the ledger; stock is fixed
	// at creation, only allocations move it afterwards)
	api.Post("/materials", materialHandler.CreateMaterial)
	api.Get("/materials", materialHandler.GetMaterials)
	api.Get("/materials/:id", materialHandler.GetMaterial)
	api.Get("/materials/:id/history", allocationHandler.GetMaterialHistory)

	// Machine registry
	api.Post("/machines", machineHandler.CreateMachine)
	api.Get("/machines", machineHandler.GetMachines)
	api.Get("/machines/:id", machineHandler.GetMachine)

	// Allocation ledger
	api.Post("/materials/:id/allocations", allocationHandler.CreateAllocations)
	api.Get("/allocations", allocationHandler.GetAllocations)
	api.Put("/allocations/:id", allocationHandler.UpdateAllocation)
	api.Delete("/allocations/:id", allocationHandler.DeleteAllocation)
	api.Get("/allocations/:id/history", allocationHandler.GetHistory)

	// Dashboard
	api.Get("/dashboard/stats", dashboardHandler.GetDashboardStats)
	api.Get("/dashboard/allocation-movement", dashboardHandler.GetAllocationMovement)

	// WebSocket route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 7. Graceful shutdown
	go func() {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
