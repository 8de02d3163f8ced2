package handler

import (
	"sort"

	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type GenerationHandler struct {
	uc usecase.GenerationUsecase
}

func NewGenerationHandler(uc usecase.GenerationUsecase) *GenerationHandler {
	return &GenerationHandler{uc: uc}
}

// Handle returns the handler for one named generation.
func (h *GenerationHandler) Handle(name string) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		fields := map[string]any{}
		if err := bind(c, &fields); err != nil {
			return err
		}

		res, err := h.uc.Generate(c.Context(), id.UID, name, fields)
		if err != nil {
			return mapUsecaseError(err)
		}
		return response.Success(c, fiber.StatusOK, generationBody(name, res))
	}
}

// generationBody shapes text generations per route; structured ones are
// returned as {data, model}.
func generationBody(name string, res usecase.GenerationResult) fiber.Map {
	if res.Data != nil {
		return fiber.Map{"data": res.Data, "model": res.Model}
	}
	switch name {
	case "generateContent":
		return fiber.Map{"generatedText": res.Text, "wordCount": usecase.WordCount(res.Text)}
	case "enhanceJobDescription":
		return fiber.Map{"enhancedDescription": res.Text, "generatedText": res.Text}
	case "summarizeJob":
		return fiber.Map{"summary": res.Text}
	default:
		return fiber.Map{"generatedText": res.Text}
	}
}

func (h *GenerationHandler) RegisterRoutes(r fiber.Router, requireAuth fiber.Handler) {
	names := make([]string, 0, len(usecase.Generations))
	for name := range usecase.Generations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.Post("/"+name, requireAuth, h.Handle(name))
	}
}
