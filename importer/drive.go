package importer

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
)

// Sheet names a spreadsheet document shared with the authorised identity.
type Sheet struct {
	Name string
	ID   string
}

// Drive enumerates the spreadsheet documents visible to the credential.
type Drive struct {
	service *drive.Service
}

func NewDrive(service *drive.Service) *Drive {
	return &Drive{
		service: service,
	}
}

// List returns the documents matching the MIME type filter, following the
// continuation token until the remote result set is exhausted. Each call
// re-queries the API.
func (d *Drive) List(ctx context.Context, mimeType string) ([]Sheet, error) {
	list := []Sheet{}
	page := ""

	for {
		call := d.service.Files.List().
			Q(fmt.Sprintf("mimeType=%q", mimeType)).
			Fields("nextPageToken, files(id, name)").
			Context(ctx)

		if page != "" {
			call = call.PageToken(page)
		}

		result, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list shared spreadsheets (%v)", err)
		}

		for _, f := range result.Files {
			list = append(list, Sheet{Name: f.Name, ID: f.Id})
		}

		if page = result.NextPageToken; page == "" {
			break
		}
	}

	return list, nil
}
