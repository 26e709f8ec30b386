package sen2cor

import (
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// gippFileName is the sen2cor processing parameter file. Its location
// inside the installation moves between sen2cor versions, so it is
// searched for.
const gippFileName = "L2A_GIPP.xml"

// FindGIPP locates the L2A_GIPP.xml below a sen2cor home directory.
func FindGIPP(home string) (string, error) {
	var found string
	err := filepath.WalkDir(home, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped
		}
		if !d.IsDir() && d.Name() == gippFileName {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("could not find %s in %s", gippFileName, home)
	}
	return found, nil
}

// Settings are the GIPP parameters rewritten per run.
type Settings struct {
	NrThreads    int
	DEMDir       string
	AerosolType  string
	Season       string
	OzoneContent int
}

// DEM reference: CGIAR-SRTM-1sec, ~90m resolution.
const demReference = "https://srtm.csi.cgiar.org/wp-content/uploads/files/srtm_5x5/TIFF/"

// values returns the element text replacements. BRDF correction stays
// disabled; it is buggy in sen2cor.
func (s Settings) values() map[string]string {
	return map[string]string{
		"Nr_Threads":             fmt.Sprint(s.NrThreads),
		"DEM_Directory":          "dem/" + s.DEMDir,
		"DEM_Reference":          demReference,
		"Aerosol_Type":           strings.ToUpper(s.AerosolType),
		"Mid_Latitude":           strings.ToUpper(s.Season),
		"Ozone_Content":          fmt.Sprint(s.OzoneContent),
		"WV_Correction":          "1",
		"VIS_Update_Mode":        "1",
		"WV_Watermask":           "1",
		"Cirrus_Correction":      "TRUE",
		"DEM_Terrain_Correction": "TRUE",
		"BRDF_Correction":        "0",
		"Downsample_20_to_60":    "FALSE",
	}
}

// RewriteGIPP streams the parameter file from r to w, replacing the text
// content of the elements named in the settings. Everything else is
// copied through unchanged.
func RewriteGIPP(r io.Reader, w io.Writer, s Settings) error {
	replacements := s.values()

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	dec := xml.NewDecoder(r)
	enc := xml.NewEncoder(w)

	var pending string // value to emit for the current element
	replacing := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("parsing GIPP: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if value, ok := replacements[t.Name.Local]; ok {
				pending = value
				replacing = true
			}
			if err := enc.EncodeToken(t); err != nil {
				return err
			}
		case xml.CharData:
			if replacing {
				// drop the original text, the replacement is written
				// just before the end element
				continue
			}
			if err := enc.EncodeToken(t); err != nil {
				return err
			}
		case xml.EndElement:
			if replacing {
				if err := enc.EncodeToken(xml.CharData(pending)); err != nil {
					return err
				}
				replacing = false
			}
			if err := enc.EncodeToken(t); err != nil {
				return err
			}
		case xml.ProcInst:
			// the header was already written
			continue
		default:
			if err := enc.EncodeToken(tok); err != nil {
				return err
			}
		}
	}
	return enc.Flush()
}

// WriteModifiedGIPP rewrites the GIPP at src into a temp file and
// returns its path.
func WriteModifiedGIPP(src string, s Settings) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.CreateTemp("", "L2A_GIPP_*.xml")
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := RewriteGIPP(in, out, s); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}
