package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type UserService interface {
	Create(ctx context.Context, req user.CreateUserRequest) (user.User, error)
	Update(ctx context.Context, id string, req user.UpdateUserRequest) (user.User, error)
	Deactivate(ctx context.Context, id string) (user.User, error)
	FindOne(ctx context.Context, id string) (*user.User, error)
	List(ctx context.Context, q user.ListUsersQuery) (user.Page, error)
}

type UsersHandler struct {
	users       UserService
	validate    *validator.Validate
	phoneRegion string
}

// NewUsersHandler wires the handlers. Phones are stored in E.164, parsed
// against phoneRegion when they carry no country code.
func NewUsersHandler(users UserService, validate *validator.Validate, phoneRegion string) *UsersHandler {
	return &UsersHandler{users: users, validate: validate, phoneRegion: phoneRegion}
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, h.validate, &req) {
		return
	}
	req.CanonicalizePhone(h.phoneRegion)

	created, err := h.users.Create(ctx.Request.Context(), req)
	if err != nil {
		respondUserError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"data":    created,
	})
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	var q user.ListUsersQuery

	if !BindQuery(ctx, h.validate, &q) {
		return
	}

	page, err := h.users.List(ctx.Request.Context(), q)
	if err != nil {
		respondUserError(ctx, err)
		return
	}

	respondJSONWithETag(ctx, http.StatusOK, page)
}

// GetUserByID answers 200 with null when no user has the id.
func (h *UsersHandler) GetUserByID(ctx *gin.Context) {
	id, ok := userIDParam(ctx)
	if !ok {
		return
	}

	u, err := h.users.FindOne(ctx.Request.Context(), id)
	if err != nil {
		respondUserError(ctx, err)
		return
	}

	if u == nil {
		ctx.JSON(http.StatusOK, nil)
		return
	}

	respondJSONWithETag(ctx, http.StatusOK, u)
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id, ok := userIDParam(ctx)
	if !ok {
		return
	}

	var req user.UpdateUserRequest

	if !BindJSON(ctx, h.validate, &req) {
		return
	}
	req.CanonicalizePhone(h.phoneRegion)

	updated, err := h.users.Update(ctx.Request.Context(), id, req)
	if err != nil {
		respondUserError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"data":    updated,
	})
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id, ok := userIDParam(ctx)
	if !ok {
		return
	}

	u, err := h.users.Deactivate(ctx.Request.Context(), id)
	if err != nil {
		respondUserError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": u.FullName + " has been deactivated",
	})
}

func userIDParam(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")

	if _, err := uuid.Parse(id); err != nil {
		RespondError(ctx, http.StatusBadRequest, "invalid_id", "Validation failed (uuid is expected)", gin.H{
			"field": "id",
			"value": id,
		})
		return "", false
	}

	return id, true
}

// respondUserError maps domain error kinds onto statuses. Anything
// unclassified gets a generic 500; the service has already logged it.
func respondUserError(ctx *gin.Context, err error) {
	var (
		dup    *user.DuplicateEmailError
		colErr *user.ColumnError
	)

	switch {
	case errors.As(err, &dup):
		RespondError(ctx, http.StatusBadRequest, "email_taken", err.Error(), gin.H{"field": "email"})

	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, err.Error())

	case errors.Is(err, user.ErrInvalidDate), errors.Is(err, user.ErrFutureDate):
		rule := "isodate"
		if errors.Is(err, user.ErrFutureDate) {
			rule = "past"
		}
		RespondFieldErrors(ctx, "Invalid request body", []FieldError{{
			Field:   "birthDate",
			Rule:    rule,
			Message: validationMessage(rule, ""),
		}})

	case errors.Is(err, user.ErrReferencedEntity):
		RespondError(ctx, http.StatusBadRequest, "referenced_entity", err.Error(), nil)

	case errors.As(err, &colErr):
		details := gin.H{"field": colErr.Field}
		switch colErr.Kind {
		case user.ErrDuplicateValue:
			RespondConflict(ctx, "duplicate_value", err.Error(), details)
		case user.ErrMissingRequiredField:
			RespondError(ctx, http.StatusBadRequest, "missing_field", err.Error(), details)
		case user.ErrInvalidFieldType:
			RespondError(ctx, http.StatusBadRequest, "invalid_field_type", err.Error(), details)
		default:
			RespondInternal(ctx, "An unexpected error occurred")
		}

	default:
		RespondInternal(ctx, "An unexpected error occurred")
	}
}
