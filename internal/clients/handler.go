package clients

import (
	"tienda-backend/internal/auth"
	"tienda-backend/internal/config"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ClientResponse struct {
	ID             uint    `json:"id"`
	Name           string  `json:"name"`
	DocumentNumber *string `json:"document_number"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email"`
	Address        string  `json:"address"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func toResponse(c models.Client) ClientResponse {
	return ClientResponse{
		ID:             c.ID,
		Name:           c.Name,
		DocumentNumber: c.DocumentNumber,
		Phone:          c.Phone,
		Email:          c.Email,
		Address:        c.Address,
		CreatedAt:      c.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:      c.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/clients
func CreateClientHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ClientInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		client, err := CreateClient(db.WithContext(c.UserContext()), body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(client))
	}
}

// GET /api/clients?search=
func ListClientsHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := listing.ParsePage(c, cfg)
		list, count, err := ListClients(db.WithContext(c.UserContext()), c.Query("search"), page)
		if err != nil {
			return err
		}
		resp := make([]ClientResponse, 0, len(list))
		for _, cl := range list {
			resp = append(resp, toResponse(cl))
		}
		return c.JSON(listing.NewPage(page, count, resp))
	}
}

// GET /api/clients/:id
func GetClientHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		client, err := GetClient(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(client))
	}
}

// PUT /api/clients/:id
func UpdateClientHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ClientUpdate
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		client, err := UpdateClient(db.WithContext(c.UserContext()), id, body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.JSON(toResponse(client))
	}
}

// DELETE /api/clients/:id
func DeleteClientHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := DeleteClient(db.WithContext(c.UserContext()), id, auth.CurrentActor(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
