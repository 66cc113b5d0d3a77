package requests

import (
	"context"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
)

const (
	exportSheet   = "Requests"
	exportMaxRows = 10000
)

var exportHeaders = []string{
	"Code", "Citizen", "Material", "Quantity", "Requested at",
	"Estimated date", "Status", "Operator", "Completed at", "Comments",
}

// Export writes the filtered staff listing as an XLSX workbook.
func (s *service) Export(ctx context.Context, actor policy.Actor, filters AdminFilters, w io.Writer) error {
	if err := policy.CanAssign(actor).Err(); err != nil {
		return err
	}
	rows, err := s.repo.List(ctx, policy.ListScope(actor), filters, nil, exportMaxRows)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sheet")
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write header")
		}
	}

	for i, r := range rows {
		dto := FromModel(r)
		operator := "Unassigned"
		if dto.Operator != nil {
			operator = dto.Operator.Username
		}
		completed := ""
		if dto.CompletedAt != nil {
			completed = dto.CompletedAt.UTC().Format(time.DateTime)
		}
		values := []any{
			dto.Code,
			dto.Citizen.Username,
			dto.Material.Label,
			dto.Quantity,
			dto.RequestedAt.UTC().Format(time.DateTime),
			dto.EstimatedDate,
			dto.StatusLabel,
			operator,
			completed,
			dto.Comments,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write row")
		}
	}

	if err := f.Write(w); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write workbook")
	}
	return nil
}
