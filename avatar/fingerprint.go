package avatar

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint returns a stable hash over the payload fields of a request,
// used for cache keys and duplicate suppression. Timeout is deliberately
// excluded: two deliveries of the same utterance are the same delivery
// regardless of the caller's patience.
func Fingerprint(req *SpeakRequest) string {
	data, err := json.Marshal(struct {
		Text     string `json:"text"`
		Emotion  string `json:"emotion"`
		Language string `json:"language"`
		VoiceID  string `json:"voice_id"`
		Gesture  string `json:"gesture"`
		AvatarID string `json:"avatar_id"`
	}{
		Text:     req.Text,
		Emotion:  req.Emotion,
		Language: req.Language,
		VoiceID:  req.VoiceID,
		Gesture:  req.Gesture,
		AvatarID: req.AvatarID,
	})
	if err != nil {
		// Marshal of a flat string struct cannot fail; keep a safe fallback.
		data = []byte(req.Text + "\x00" + req.Emotion + "\x00" + req.Language)
	}
	sum := sha256.Sum256(data)
	return "avatar:speak:" + hex.EncodeToString(sum[:16])
}
