package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/courselogic/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Statuses
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

var (
	AllRoles    = []string{RoleStudent, RoleAdmin}
	AllStatuses = []string{StatusActive, StatusSuspended}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username"`
	AvatarURL    string    `json:"avatar_url"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool     { return u.Role == RoleAdmin }
func (u *User) IsStudent() bool   { return u.Role == RoleStudent }
func (u *User) IsSuspended() bool { return u.Status == StatusSuspended }

// DisplayName returns the full name, falling back to the email.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email           string `json:"email" validate:"required,email"`
	FullName        string `json:"full_name" validate:"required,notblank,max=120"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"-" validate:"omitempty,role"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanName(nu.FullName)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, nu.Email)
}

// UpdateProfile defines what a user may change on their own profile.
type UpdateProfile struct {
	FullName  string `json:"full_name" validate:"omitempty,max=120"`
	Username  string `json:"username" validate:"omitempty,min=3,max=30,alphanum_"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

// Validate cleans the fields and fills the blank ones from origUsr.
func (up *UpdateProfile) Validate(origUsr User, validate *validator.Validate) error {
	if name := core.CleanName(up.FullName); name != "" {
		up.FullName = name
	} else {
		up.FullName = origUsr.FullName
	}

	if uname := core.CleanString(up.Username, true /* lower */); uname != "" {
		up.Username = uname
	} else {
		up.Username = origUsr.Username
	}

	if avatar := core.CleanString(up.AvatarURL); avatar != "" {
		up.AvatarURL = avatar
	} else {
		up.AvatarURL = origUsr.AvatarURL
	}

	return validate.Struct(up)
}

// SetPassword is the payload used to set a user's password.
type SetPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	usr User
}

func (sp *SetPassword) Validate(usr User, validate *validator.Validate) error {
	sp.usr = usr
	return validate.Struct(sp)
}

type QueryFilter struct {
	Search string `query:"search"`
	Role   string `query:"role"`
	Status string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.Status == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// GetFilter selects a single user, by ID or by Email.
type GetFilter struct {
	ID    string
	Email string
}
