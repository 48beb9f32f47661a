package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"filedrop/internal/service"
)

// RegisterRoutes attaches the drop endpoints under routeBase plus the probes.
// Fiber matches paths case-insensitively by default, so /api/Upload/UploadFile
// reaches the same handler as /api/upload/uploadfile.
func RegisterRoutes(app *fiber.App, routeBase string, p Pinger, svc service.DropService) {
	app.Get("/health", HealthCheck(p))
	app.Get("/healthz", LivenessProbe())

	base := strings.TrimRight(routeBase, "/")
	app.Post(base+"/upload/uploadfile", UploadFile(svc))
	app.Get(base+"/download/downloadfile", DownloadFile(svc))
}
