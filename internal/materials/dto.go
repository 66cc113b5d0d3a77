package materials

import "github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"

// MaterialDTO is the listing shape of a material.
type MaterialDTO struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Label       string `json:"label"`
}

// CreateMaterialRequest is the staff payload for new reference data.
type CreateMaterialRequest struct {
	Code        string `json:"code" validate:"required,min=1,max=4"`
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description"`
}

func FromModel(m models.Material) MaterialDTO {
	return MaterialDTO{Code: m.Code, Name: m.Name, Description: m.Description, Label: m.Label()}
}
