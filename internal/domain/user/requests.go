package user

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type CreateUserRequest struct {
	FirstName string `json:"firstName" binding:"required,max=100,personname"`
	LastName  string `json:"lastName" binding:"required,max=100,personname"`
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=8,max=255,strongpassword"`
	Phone     string `json:"phone" binding:"omitempty,phone"`
	BirthDate string `json:"birthDate" binding:"omitempty,isodate,past"`
	Role      string `json:"role" binding:"omitempty,oneof=user admin moderator"`
}

// Normalize trims the name parts and lowercases the email before validation.
func (r *CreateUserRequest) Normalize() {
	r.FirstName = NormalizeName(r.FirstName)
	r.LastName = NormalizeName(r.LastName)
	r.Email = NormalizeEmail(r.Email)
}

// partial update: nil fields are left untouched.
type UpdateUserRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,min=1,max=100,personname"`
	LastName  *string `json:"lastName" binding:"omitempty,min=1,max=100,personname"`
	Email     *string `json:"email" binding:"omitempty,email,max=255"`
	Password  *string `json:"password" binding:"omitempty,min=8,max=255,strongpassword"`
	Phone     *string `json:"phone" binding:"omitempty,phone"`
	BirthDate *string `json:"birthDate" binding:"omitempty,isodate,past"`
	Role      *string `json:"role" binding:"omitempty,oneof=user admin moderator"`
}

func (r *UpdateUserRequest) Normalize() {
	if r.FirstName != nil {
		v := NormalizeName(*r.FirstName)
		r.FirstName = &v
	}
	if r.LastName != nil {
		v := NormalizeName(*r.LastName)
		r.LastName = &v
	}
	if r.Email != nil {
		v := NormalizeEmail(*r.Email)
		r.Email = &v
	}
}

// IsEmpty reports whether the request carries no field at all.
func (r UpdateUserRequest) IsEmpty() bool {
	return r.FirstName == nil && r.LastName == nil && r.Email == nil &&
		r.Password == nil && r.Phone == nil && r.BirthDate == nil && r.Role == nil
}

type ListUsersQuery struct {
	Page   *int `form:"page" json:"page" binding:"omitempty,min=1"`
	Limit  *int `form:"limit" json:"limit" binding:"omitempty,min=1,max=100"`
	MinAge *int `form:"minAge" json:"minAge" binding:"omitempty,min=0"`
	MaxAge *int `form:"maxAge" json:"maxAge" binding:"omitempty,min=0"`
}

func (q *ListUsersQuery) Normalize() {}

// PageAndLimit resolves the defaults for absent values.
func (q ListUsersQuery) PageAndLimit() (int, int) {
	page, limit := DefaultPage, DefaultLimit
	if q.Page != nil {
		page = *q.Page
	}
	if q.Limit != nil {
		limit = *q.Limit
	}
	return page, limit
}

// with pointers if optional, it will be nil
type ListUsersFilter struct {
	MinAge *int
	MaxAge *int
	Limit  int
	Offset int
}

func (q ListUsersQuery) Filter() ListUsersFilter {
	page, limit := q.PageAndLimit()
	return ListUsersFilter{
		MinAge: q.MinAge,
		MaxAge: q.MaxAge,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type Page struct {
	Data []User   `json:"data"`
	Meta PageMeta `json:"meta"`
}

func NewPage(items []User, total, page, limit int) Page {
	if items == nil {
		items = []User{}
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return Page{
		Data: items,
		Meta: PageMeta{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	}
}
