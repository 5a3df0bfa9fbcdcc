package handlers

import (
	"badminton-data-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQueryRoutes(app *fiber.App, queryService *services.QueryService) {
	// 🔓 Public read-only surface consumed by the dashboard
	app.Get("/api/rankings", queryService.GetRankings)
	app.Get("/api/matches", queryService.GetMatches)
	app.Get("/api/status", queryService.GetStatus)
}
