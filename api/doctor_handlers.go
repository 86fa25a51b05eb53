package api

import (
	"care-chat/auth"
	"care-chat/domain"
	"care-chat/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type patientSummary struct {
	ID       string `json:"id"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
}

// BondPatient associates the calling doctor with a patient. The association
// is what authorizes the pair to chat; both sides of the bond are written
// atomically by the repository.
func (h *Handlers) BondPatient(c *fiber.Ctx) error {
	doctorID := auth.UserID(c)
	patientID := c.Params("patientId")

	if err := h.users.BondPatient(doctorID, patientID); err != nil {
		h.log.Error("failed to bond patient",
			"doctor_id", doctorID, "patient_id", patientID, "error", err)
		return fail(c, errors.HTTPStatus(err), err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "message": "patient associated"})
}

// ListPatients returns the calling doctor's bonded patients.
func (h *Handlers) ListPatients(c *fiber.Ctx) error {
	patients, err := h.users.Patients(auth.UserID(c))
	if err != nil {
		return fail(c, errors.HTTPStatus(err), err.Error())
	}

	summaries := lo.Map(patients, func(p domain.User, _ int) patientSummary {
		return patientSummary{ID: p.ID, FullName: p.FullName, Email: p.Email}
	})
	return ok(c, summaries)
}
