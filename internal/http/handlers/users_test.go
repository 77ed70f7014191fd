package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeUserService implements handlers.UserService; unset functions return zero values.
type fakeUserService struct {
	createFn     func(ctx context.Context, req user.CreateUserRequest) (user.User, error)
	updateFn     func(ctx context.Context, id string, req user.UpdateUserRequest) (user.User, error)
	deactivateFn func(ctx context.Context, id string) (user.User, error)
	findOneFn    func(ctx context.Context, id string) (*user.User, error)
	listFn       func(ctx context.Context, q user.ListUsersQuery) (user.Page, error)
}

func (f *fakeUserService) Create(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return user.User{}, nil
}

func (f *fakeUserService) Update(ctx context.Context, id string, req user.UpdateUserRequest) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}
	return user.User{}, nil
}

func (f *fakeUserService) Deactivate(ctx context.Context, id string) (user.User, error) {
	if f.deactivateFn != nil {
		return f.deactivateFn(ctx, id)
	}
	return user.User{}, nil
}

func (f *fakeUserService) FindOne(ctx context.Context, id string) (*user.User, error) {
	if f.findOneFn != nil {
		return f.findOneFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeUserService) List(ctx context.Context, q user.ListUsersQuery) (user.Page, error) {
	if f.listFn != nil {
		return f.listFn(ctx, q)
	}
	return user.NewPage(nil, 0, 1, 10), nil
}

func setupUsersRouter(svc handlers.UserService) *gin.Engine {
	h := handlers.NewUsersHandler(svc, handlers.NewValidator("PE"), "PE")

	r := gin.New()
	r.POST("/users", h.CreateUser)
	r.GET("/users", h.ListUsers)
	r.GET("/users/:id", h.GetUserByID)
	r.PATCH("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)
	return r
}

const validCreateBody = `{"firstName":"Rody","lastName":"Huancas","email":"Rody@Correo.com","password":"Secret123","birthDate":"1995-09-04"}`

type apiErrorResponse struct {
	Error handlers.APIError `json:"error"`
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) handlers.APIError {
	t.Helper()

	var resp apiErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}
	return resp.Error
}

func TestCreateUser_Success(t *testing.T) {
	var got user.CreateUserRequest

	svc := &fakeUserService{
		createFn: func(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
			got = req
			return user.User{ID: uuid.NewString(), Email: req.Email, FullName: "Rody Huancas", PasswordHash: "hash", Age: 28}, nil
		},
	}

	w := doJSON(setupUsersRouter(svc), http.MethodPost, "/users", validCreateBody)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusCreated, w.Code, w.Body.String())
	}
	if got.Email != "rody@correo.com" {
		t.Fatalf("expected normalized email to reach the service, got %q", got.Email)
	}

	var resp struct {
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Message == "" || resp.Data["fullName"] != "Rody Huancas" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if _, leaked := resp.Data["passwordHash"]; leaked {
		t.Fatalf("password hash must not be serialized")
	}
}

func TestCreateUser_PhoneStoredInE164(t *testing.T) {
	tests := []struct {
		name  string
		phone string
	}{
		{"national", "987654321"},
		{"spaced", "+51 987 654 321"},
		{"longer than the column", "+51-9-8-7-6-5-4-3-2-1"},
		{"with extension", "+51  987  654  321  ext. 1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got user.CreateUserRequest
			svc := &fakeUserService{
				createFn: func(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
					got = req
					return user.User{ID: uuid.NewString()}, nil
				},
			}

			body := fmt.Sprintf(`{"firstName":"Rody","lastName":"Huancas","email":"rody@correo.com","password":"Secret123","phone":%q}`, tt.phone)
			w := doJSON(setupUsersRouter(svc), http.MethodPost, "/users", body)

			if w.Code != http.StatusCreated {
				t.Fatalf("expected status %d, got %d, body=%s", http.StatusCreated, w.Code, w.Body.String())
			}
			if got.Phone != "+51987654321" {
				t.Fatalf("expected E.164 phone, got %q", got.Phone)
			}
		})
	}
}

func TestUpdateUser_PhoneStoredInE164(t *testing.T) {
	id := uuid.NewString()
	var got *string
	svc := &fakeUserService{
		updateFn: func(ctx context.Context, gotID string, req user.UpdateUserRequest) (user.User, error) {
			got = req.Phone
			return user.User{ID: gotID}, nil
		},
	}

	w := doJSON(setupUsersRouter(svc), http.MethodPatch, "/users/"+id, `{"phone":"+51 (987) 654-321"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusOK, w.Code, w.Body.String())
	}
	if got == nil || *got != "+51987654321" {
		t.Fatalf("expected E.164 phone, got %v", got)
	}
}

func TestCreateUser_ValidationFailureSkipsService(t *testing.T) {
	called := false
	svc := &fakeUserService{
		createFn: func(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
			called = true
			return user.User{}, nil
		},
	}

	w := doJSON(setupUsersRouter(svc), http.MethodPost, "/users", `{"email":"rody@correo.com"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if called {
		t.Fatalf("service must not run when validation fails")
	}
}

func TestCreateUser_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"duplicate email", &user.DuplicateEmailError{Email: "rody@correo.com"}, http.StatusBadRequest, "email_taken"},
		{"duplicate value backstop", &user.ColumnError{Kind: user.ErrDuplicateValue, Field: "email", Value: "rody@correo.com"}, http.StatusConflict, "duplicate_value"},
		{"missing field", &user.ColumnError{Kind: user.ErrMissingRequiredField, Field: "email"}, http.StatusBadRequest, "missing_field"},
		{"invalid type", &user.ColumnError{Kind: user.ErrInvalidFieldType, Field: "age", ExpectedType: "integer"}, http.StatusBadRequest, "invalid_field_type"},
		{"referenced entity", user.ErrReferencedEntity, http.StatusBadRequest, "referenced_entity"},
		{"future birth date", user.ErrFutureDate, http.StatusBadRequest, "invalid_request"},
		{"password hashing failure", fmt.Errorf("%w: rand: short read", user.ErrPasswordHash), http.StatusInternalServerError, "internal_error"},
		{"storage failure", &user.StorageError{Op: "users.create", Err: errors.New("dial tcp 10.0.0.1:5432: refused")}, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUserService{
				createFn: func(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
					return user.User{}, tt.err
				},
			}

			w := doJSON(setupUsersRouter(svc), http.MethodPost, "/users", validCreateBody)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d, body=%s", tt.wantStatus, w.Code, w.Body.String())
			}

			apiErr := decodeAPIError(t, w)
			if apiErr.Code != tt.wantCode {
				t.Fatalf("expected code %q, got %q", tt.wantCode, apiErr.Code)
			}
			if tt.wantStatus == http.StatusInternalServerError && apiErr.Message != "An unexpected error occurred" {
				t.Fatalf("internal detail leaked: %q", apiErr.Message)
			}
		})
	}
}

func TestGetUserByID(t *testing.T) {
	existing := uuid.NewString()

	svc := &fakeUserService{
		findOneFn: func(ctx context.Context, id string) (*user.User, error) {
			if id == existing {
				return &user.User{ID: id, FullName: "Rody Huancas"}, nil
			}
			return nil, nil
		},
	}
	r := setupUsersRouter(svc)

	tests := []struct {
		name       string
		id         string
		wantStatus int
		wantBody   string
	}{
		{"found", existing, http.StatusOK, ""},
		{"absent is null", uuid.NewString(), http.StatusOK, "null"},
		{"malformed id", "not-a-uuid", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/"+tt.id, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d, body=%s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Fatalf("expected body %q, got %q", tt.wantBody, w.Body.String())
			}
			if tt.wantStatus == http.StatusBadRequest {
				if code := decodeAPIError(t, w).Code; code != "invalid_id" {
					t.Fatalf("expected invalid_id, got %q", code)
				}
			}
		})
	}
}

func TestListUsers_PassesQueryAndReturnsMeta(t *testing.T) {
	var got user.ListUsersQuery

	svc := &fakeUserService{
		listFn: func(ctx context.Context, q user.ListUsersQuery) (user.Page, error) {
			got = q
			page, limit := q.PageAndLimit()
			return user.NewPage([]user.User{{ID: uuid.NewString()}}, 25, page, limit), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/users?page=2&limit=10&minAge=18", nil)
	w := httptest.NewRecorder()
	setupUsersRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if got.Page == nil || *got.Page != 2 || got.MinAge == nil || *got.MinAge != 18 || got.MaxAge != nil {
		t.Fatalf("query not bound as expected: %+v", got)
	}

	var page user.Page
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to unmarshal page: %v", err)
	}
	if page.Meta.Total != 25 || page.Meta.TotalPages != 3 || page.Meta.Page != 2 {
		t.Fatalf("unexpected meta %+v", page.Meta)
	}
}

func TestListUsers_LimitAboveMaxIsRejected(t *testing.T) {
	called := false
	svc := &fakeUserService{
		listFn: func(ctx context.Context, q user.ListUsersQuery) (user.Page, error) {
			called = true
			return user.Page{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/users?limit=150", nil)
	w := httptest.NewRecorder()
	setupUsersRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest || called {
		t.Fatalf("expected 400 without reaching the service, got %d called=%v", w.Code, called)
	}
}

func TestUpdateUser(t *testing.T) {
	id := uuid.NewString()

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"partial update", `{"firstName":"Ana"}`, nil, http.StatusOK},
		{"not found", `{"firstName":"Ana"}`, &user.NotFoundError{ID: id}, http.StatusNotFound},
		{"email taken by someone else", `{"email":"other@x.io"}`, &user.DuplicateEmailError{Email: "other@x.io"}, http.StatusBadRequest},
		{"unknown field", `{"nickname":"ana"}`, nil, http.StatusBadRequest},
		{"empty first name", `{"firstName":""}`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUserService{
				updateFn: func(ctx context.Context, gotID string, req user.UpdateUserRequest) (user.User, error) {
					if gotID != id {
						t.Fatalf("unexpected id %q", gotID)
					}
					if tt.err != nil {
						return user.User{}, tt.err
					}
					return user.User{ID: id, FirstName: *req.FirstName}, nil
				},
			}

			w := doJSON(setupUsersRouter(svc), http.MethodPatch, "/users/"+id, tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d, body=%s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestDeleteUser(t *testing.T) {
	id := uuid.NewString()

	svc := &fakeUserService{
		deactivateFn: func(ctx context.Context, gotID string) (user.User, error) {
			if gotID != id {
				return user.User{}, &user.NotFoundError{ID: gotID}
			}
			return user.User{ID: id, FullName: "Rody Huancas"}, nil
		},
	}
	r := setupUsersRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/users/"+id, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["message"] != "Rody Huancas has been deactivated" {
		t.Fatalf("unexpected message %q", resp["message"])
	}

	req = httptest.NewRequest(http.MethodDelete, "/users/"+uuid.NewString(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestGetUserByID_ConditionalGet(t *testing.T) {
	id := uuid.NewString()

	svc := &fakeUserService{
		findOneFn: func(ctx context.Context, gotID string) (*user.User, error) {
			return &user.User{ID: gotID, FullName: "Rody Huancas"}, nil
		},
	}
	r := setupUsersRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+id, nil))

	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || etag == "" {
		t.Fatalf("expected 200 with an ETag, got %d etag=%q", w.Code, etag)
	}

	req := httptest.NewRequest(http.MethodGet, "/users/"+id, nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304 for a matching If-None-Match, got %d", w.Code)
	}
}
