package dto

import "fintrack/internal/models"

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type CategoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewCategoryResponse(c *models.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID.String(), Name: c.Name}
}
