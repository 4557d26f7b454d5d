package loader

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nmfs-ost/dismap/internal/domain"
)

// metadataDoc covers the ArcGIS item metadata layout and the FGDC fallback.
type metadataDoc struct {
	XMLName  xml.Name `xml:"metadata"`
	DataInfo struct {
		Title    string `xml:"idCitation>resTitle"`
		Abstract string `xml:"idAbs"`
		Purpose  string `xml:"idPurp"`
	} `xml:"dataIdInfo"`
	IDInfo struct {
		Title    string `xml:"citation>citeinfo>title"`
		Abstract string `xml:"descript>abstract"`
		Purpose  string `xml:"descript>purpose"`
	} `xml:"idinfo"`
}

// readMetadata parses the metadata document at path. ok is false when the
// file does not exist.
func readMetadata(path string) (md domain.Metadata, ok bool, err error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path derives from the source file
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Metadata{}, false, nil
		}
		return domain.Metadata{}, false, fmt.Errorf("read metadata %s: %w", path, err)
	}
	var doc metadataDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return domain.Metadata{}, false, domain.ErrValidation("parse metadata %s: %v", path, err)
	}
	md = domain.Metadata{
		Title:    firstNonEmpty(doc.DataInfo.Title, doc.IDInfo.Title),
		Abstract: firstNonEmpty(doc.DataInfo.Abstract, doc.IDInfo.Abstract),
		Purpose:  firstNonEmpty(doc.DataInfo.Purpose, doc.IDInfo.Purpose),
	}
	return md, true, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
