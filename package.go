package assetgen

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// PackageInfo is the subset of package.json that the build reads: the name
// and version for the banner, and author/version for html preprocessing.
type PackageInfo struct {
	Name    string
	Version string
	Author  string
}

type packageJSON struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Author  json.RawMessage `json:"author"`
}

// LoadPackageInfo reads a package descriptor.  A missing file yields an empty
// PackageInfo; a malformed one is an error.  The author may be either a
// string or an object with name and email.
func LoadPackageInfo(fs afero.Fs, path string) (PackageInfo, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return PackageInfo{}, nil
		}
		return PackageInfo{}, eris.Wrapf(err, "failed to read %s", path)
	}

	var raw packageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return PackageInfo{}, eris.Wrapf(err, "invalid package descriptor %s", path)
	}

	info := PackageInfo{Name: raw.Name, Version: raw.Version}
	if len(raw.Author) > 0 {
		var name string
		if err := json.Unmarshal(raw.Author, &name); err == nil {
			info.Author = name
		} else {
			var person struct {
				Name  string `json:"name"`
				Email string `json:"email"`
			}
			if err := json.Unmarshal(raw.Author, &person); err != nil {
				return info, eris.Wrapf(err, "invalid author in %s", path)
			}
			info.Author = strings.TrimSpace(person.Name)
			if person.Email != "" {
				info.Author += " <" + person.Email + ">"
			}
		}
	}
	return info, nil
}

// Banner is the line logged before clean and watch.
func (p PackageInfo) Banner(mode Mode) string {
	return strings.TrimSpace(strings.TrimSpace(p.Name+" "+p.Version) + " build - " + mode.String())
}
