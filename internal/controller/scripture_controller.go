package controller

import (
	"bibleai-be/internal/dto"
	"bibleai-be/internal/pkg/serverutils"
	"bibleai-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IScriptureController interface {
	RegisterRoutes(r fiber.Router)
	Search(ctx *fiber.Ctx) error
	Chapter(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type scriptureController struct {
	scriptureService service.IScriptureService
	analyticsService service.IAnalyticsService
}

func NewScriptureController(scriptureService service.IScriptureService, analyticsService service.IAnalyticsService) IScriptureController {
	return &scriptureController{
		scriptureService: scriptureService,
		analyticsService: analyticsService,
	}
}

func (c *scriptureController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
	r.Post("/search", c.Search)
	r.Post("/chapter", c.Chapter)
	r.Get("/stats", c.Stats)
}

func (c *scriptureController) Search(ctx *fiber.Ctx) error {
	var req dto.SearchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.scriptureService.Search(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success search verses", res))
}

func (c *scriptureController) Chapter(ctx *fiber.Ctx) error {
	var req dto.ChapterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.scriptureService.Chapter(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chapter", res))
}

// Health answers 503 when the corpus is empty so load balancers hold traffic
func (c *scriptureController) Health(ctx *fiber.Ctx) error {
	res := c.scriptureService.Health(ctx.UserContext())
	if res.Status != "ok" {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(serverutils.BaseResponse[*dto.HealthResponse]{
			Success: false,
			Code:    fiber.StatusServiceUnavailable,
			Message: "Engine degraded",
			Data:    res,
		})
	}

	return ctx.JSON(serverutils.SuccessResponse("Engine healthy", res))
}

func (c *scriptureController) Stats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get stats", c.analyticsService.Stats()))
}
