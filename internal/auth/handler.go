package auth

import (
	"net/mail"
	"strings"
	"time"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/config"
	"tienda-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLen = 8

type RegisterRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID     uint            `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	Active bool            `json:"active"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Active: u.Active}
}

func (r *RegisterRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if r.Name == "" || r.Email == "" || r.Password == "" {
		return apperr.Validation("name, email and password are required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return apperr.Validation("invalid email")
	}
	if len(r.Password) < minPasswordLen {
		return apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func createUser(tx *gorm.DB, body RegisterRequest, actor audit.Actor) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		Name:         body.Name,
		Email:        body.Email,
		PasswordHash: string(hash),
		Role:         body.Role,
		Active:       true,
	}
	if err := tx.Create(&user).Error; err != nil {
		return models.User{}, apperr.FromDB(err, "user")
	}
	err = audit.WriteLog(tx, audit.LogOptions{
		Actor:       actor,
		EntityType:  "user",
		EntityID:    user.ID,
		Action:      models.AuditActionCreate,
		Description: "user created: " + user.Email,
		After:       toUserResponse(user),
	})
	return user, err
}

// POST /api/auth/bootstrap creates the first admin; refused once any
// admin exists.
func BootstrapAdminHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Role = models.RoleAdmin
		if err := body.normalize(); err != nil {
			return err
		}

		var user models.User
		err := db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return fiber.NewError(fiber.StatusForbidden, "an admin already exists")
			}
			var err error
			user, err = createUser(tx, body, audit.Actor{})
			return err
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// POST /api/users (admin)
func CreateUserHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := body.normalize(); err != nil {
			return err
		}
		if !body.Role.Valid() {
			return apperr.Validation("invalid role %q", body.Role)
		}

		var user models.User
		err := db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var err error
			user, err = createUser(tx, body, CurrentActor(c))
			return err
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

func LoginHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := db.WithContext(c.UserContext()).Where("email = ?", body.Email).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong email or password")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong email or password")
		}
		if !user.Active {
			return fiber.NewError(fiber.StatusForbidden, "user is disabled")
		}

		token, err := GenerateToken(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour, &user)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  toUserResponse(user),
		})
	}
}

func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals(CtxUserIDKey).(uint)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing user information")
		}
		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, userID).Error; err != nil {
			return apperr.FromDB(err, "user")
		}

		perms := make([]Permission, 0)
		for _, p := range allPermissions {
			if PermissionsFor(user.Role).Has(p) {
				perms = append(perms, p)
			}
		}
		return c.JSON(fiber.Map{
			"user":        toUserResponse(user),
			"permissions": perms,
		})
	}
}
