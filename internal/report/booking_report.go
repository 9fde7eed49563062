// Package report renders booking data as spreadsheets.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/Kilat-Parking/service-parking/internal/application"
)

const bookingSheet = "Bookings"

// ContentTypeXLSX is the MIME type of the generated workbooks.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var bookingHeaders = []string{
	"Booking Number",
	"Booking ID",
	"User ID",
	"Parking Lot ID",
	"Parking Spot ID",
	"Vehicle ID",
	"Status",
	"Start Time",
	"End Time",
	"Expected Cost",
	"Actual Cost",
	"Check-in",
	"Check-out",
	"Payment ID",
	"Created At",
}

// WriteBookings writes bookings as an xlsx workbook with one row per booking.
func WriteBookings(w io.Writer, bookings []application.BookingDTO) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", bookingSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, header := range bookingHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(bookingSheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, b := range bookings {
		row := []interface{}{
			b.BookingNumber,
			b.ID.String(),
			b.UserID.String(),
			b.ParkingLotID.String(),
			optionalID(b.ParkingSpotID),
			optionalID(b.VehicleID),
			b.Status,
			formatTime(&b.StartTime),
			formatTime(&b.EndTime),
			b.ExpectedCost,
			optionalFloat(b.ActualCost),
			formatTime(b.ActualCheckInTime),
			formatTime(b.ActualCheckOutTime),
			optionalText(b.PaymentID),
			formatTime(&b.CreatedAt),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(bookingSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write booking row: %w", err)
		}
	}

	if err := f.SetPanes(bookingSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// FileName returns the download name for an export generated at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", now.UTC().Format("20060102_150405"))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func optionalText(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
