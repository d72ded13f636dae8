package models

// ArtifactPair is the single result of one producer call. Both references are
// set together or the production failed.
type ArtifactPair struct {
	VerifiedRef  string `json:"verified_ref"`
	WallpaperRef string `json:"wallpaper_ref"`
}

// Complete reports whether both references are populated.
func (p ArtifactPair) Complete() bool {
	return p.VerifiedRef != "" && p.WallpaperRef != ""
}
