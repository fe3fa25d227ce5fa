package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hostel-dispatch/internal/api/dto"
	"github.com/spec-kit/hostel-dispatch/internal/auth"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

const maxPageSize = 200

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

// bindBody parses the JSON body into req and runs struct validation.
func bindBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.GetValidator().Struct(req); err != nil {
		return apperrors.NewValidationError("validation failed", dto.ParseErrors(err))
	}
	return nil
}

// bindOptionalBody is bindBody for endpoints whose body may be empty.
func bindOptionalBody(c *fiber.Ctx, req any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return bindBody(c, req)
}

func pagination(c *fiber.Ctx) (limit, offset int, err error) {
	limit, err = queryInt(c, "limit", 50)
	if err != nil {
		return 0, 0, err
	}
	offset, err = queryInt(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if limit < 1 || limit > maxPageSize {
		return 0, 0, apperrors.NewValidationError("limit out of range", map[string]any{"limit": limit, "max": maxPageSize})
	}
	if offset < 0 {
		return 0, 0, apperrors.NewValidationError("offset must not be negative", nil)
	}
	return limit, offset, nil
}

func queryInt(c *fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid "+key, map[string]any{key: raw})
	}
	return v, nil
}

func queryBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid "+key, map[string]any{key: raw})
	}
	return &v, nil
}

func queryString(c *fiber.Ctx, key string) *string {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		return &v
	}
	return nil
}

func splitQuery(c *fiber.Ctx, key string) []string {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
