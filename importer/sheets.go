package importer

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"
)

// SheetsSource fetches cell value grids from the Sheets API.
type SheetsSource struct {
	service *sheets.Service
}

func NewSheetsSource(service *sheets.Service) *SheetsSource {
	return &SheetsSource{
		service: service,
	}
}

// Fetch retrieves the grid of cell values for the given document and range.
// An empty range yields an empty grid, not an error. Rows may be ragged.
func (s *SheetsSource) Fetch(ctx context.Context, documentID, area string) ([][]string, error) {
	response, err := s.service.Spreadsheets.Values.Get(documentID, area).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve data from sheet (%v)", err)
	}

	return gridFromValues(response.Values), nil
}

func gridFromValues(values [][]any) [][]string {
	grid := make([][]string, 0, len(values))

	for _, row := range values {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprintf("%v", v)
		}

		grid = append(grid, record)
	}

	return grid
}
