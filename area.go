package recordkv

import "fmt"

// Area names a storage area.
type Area string

const (
	// AreaDefault selects AreaLocal.
	AreaDefault Area = ""
	// AreaLocal is the local storage area.
	AreaLocal Area = "local"
	// AreaSync is the synced storage area. Writes to it are subject to the
	// sync quota.
	AreaSync Area = "sync"
)

// ParseArea parses an area name.
func ParseArea(s string) (Area, error) {
	a := Area(s)
	if _, err := a.resolve(); err != nil {
		return "", err
	}
	return a, nil
}

func (a Area) resolve() (Area, error) {
	switch a {
	case AreaDefault, AreaLocal:
		return AreaLocal, nil
	case AreaSync:
		return AreaSync, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidArea, string(a))
	}
}
