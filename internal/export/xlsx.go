package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"eventbook/internal/models"
)

var bookingHeaders = []string{
	"ID", "Customer", "Vendor", "Vendor Name", "Event Date",
	"Status", "Admin Note", "Version", "Created At", "Updated At",
}

var historyHeaders = []string{
	"Booking ID", "Status", "Actor ID", "Actor Role", "At",
}

// WriteBookingsWorkbook renders bookings and their history into an XLSX
// workbook with two sheets and streams it to w.
func WriteBookingsWorkbook(w io.Writer, bookings []*models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	const bookingsSheet = "Bookings"
	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	for col, h := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, h)
	}

	for row, b := range bookings {
		values := []interface{}{
			b.ID,
			b.CustomerID,
			b.VendorID,
			b.VendorName,
			b.EventDate.Format("2006-01-02"),
			string(b.Status),
			b.AdminNote,
			b.Version,
			b.CreatedAt.Format("2006-01-02 15:04:05"),
			b.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(bookingsSheet, cell, v)
		}
	}

	const historySheet = "History"
	if _, err := f.NewSheet(historySheet); err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}
	for col, h := range historyHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(historySheet, cell, h)
	}

	row := 2
	for _, b := range bookings {
		for _, e := range b.History {
			values := []interface{}{
				e.BookingID,
				string(e.Status),
				e.ActorID,
				string(e.ActorRole),
				e.CreatedAt.Format("2006-01-02 15:04:05"),
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(historySheet, cell, v)
			}
			row++
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "J", 18)
	_ = f.SetColWidth(historySheet, "A", "E", 18)

	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(bookingsSheet, "A1", "J1", style)
	_ = f.SetCellStyle(historySheet, "A1", "E1", style)

	_ = f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %v", err)
	}
	return nil
}
