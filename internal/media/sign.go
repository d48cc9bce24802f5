// Package media issues time-boxed Cloudinary upload credentials and infers
// display kinds for stored media URLs.
package media

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kinds stored on messages. Anything that is not recognizably a video is
// displayed as an image.
const (
	KindImage = "image"
	KindVideo = "video"
)

// Upload endpoint categories and the folders they map to. Unknown
// categories fall back to the root folder so a stale client can still
// upload.
const rootFolder = "chat-app"

var folders = map[string]string{
	"profile":      rootFolder + "/profiles",
	"group":        rootFolder + "/groups",
	"messageImage": rootFolder + "/messages/images",
	"messageVideo": rootFolder + "/messages/videos",
}

// Signer produces signed upload parameters for direct-to-Cloudinary
// client uploads. The API secret never leaves the server; clients receive
// only the derived signature.
type Signer struct {
	cloudName string
	apiKey    string
	apiSecret string
}

// NewSigner returns a Signer for the given Cloudinary account.
func NewSigner(cloudName, apiKey, apiSecret string) *Signer {
	return &Signer{cloudName: cloudName, apiKey: apiKey, apiSecret: apiSecret}
}

// Signature is the credential a client needs to perform one signed upload.
type Signature struct {
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
	Folder    string `json:"folder"`
	APIKey    string `json:"apiKey"`
	CloudName string `json:"cloudName"`
	PublicID  string `json:"publicId"`
}

// Sign issues an upload credential for the given endpoint category
// ("profile", "group", "messageImage", "messageVideo").
func (s *Signer) Sign(endpoint string) Signature {
	return s.signAt(endpoint, time.Now())
}

func (s *Signer) signAt(endpoint string, now time.Time) Signature {
	folder := FolderFor(endpoint)
	ts := now.Unix()

	// Cloudinary's api_sign_request: SHA-1 over the alphabetically sorted
	// parameter string with the API secret appended.
	payload := fmt.Sprintf("folder=%s&timestamp=%d%s", folder, ts, s.apiSecret)
	sum := sha1.Sum([]byte(payload))

	return Signature{
		Timestamp: ts,
		Signature: hex.EncodeToString(sum[:]),
		Folder:    folder,
		APIKey:    s.apiKey,
		CloudName: s.cloudName,
		PublicID:  uuid.NewString(),
	}
}

// FolderFor maps an upload endpoint category to its Cloudinary folder.
func FolderFor(endpoint string) string {
	if f, ok := folders[endpoint]; ok {
		return f
	}
	return rootFolder
}

// Kind resolves the display kind for a stored media reference. An explicit
// kind tag wins; otherwise the URL is inspected for a "video" marker.
// The substring fallback exists so messages stored before kinds were
// recorded still render correctly.
func Kind(explicit, url string) string {
	switch explicit {
	case KindImage, KindVideo:
		return explicit
	}
	if strings.Contains(strings.ToLower(url), "video") {
		return KindVideo
	}
	return KindImage
}
