package avatar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStable(t *testing.T) {
	req := &SpeakRequest{Text: "goal!", Emotion: "excited", Language: "en", AvatarID: "anna"}
	assert.Equal(t, Fingerprint(req), Fingerprint(req))
}

func TestFingerprintDistinguishesPayloadFields(t *testing.T) {
	base := SpeakRequest{Text: "goal!", Emotion: "excited", Language: "en", AvatarID: "anna"}
	seen := map[string]string{"base": Fingerprint(&base)}

	variants := map[string]SpeakRequest{}
	v := base
	v.Text = "own goal"
	variants["text"] = v
	v = base
	v.Emotion = "sad"
	variants["emotion"] = v
	v = base
	v.Language = "zh"
	variants["language"] = v
	v = base
	v.VoiceID = "v2"
	variants["voice"] = v
	v = base
	v.Gesture = "wave"
	variants["gesture"] = v
	v = base
	v.AvatarID = "boris"
	variants["avatar"] = v

	for name, req := range variants {
		fp := Fingerprint(&req)
		for prior, priorFP := range seen {
			assert.NotEqual(t, priorFP, fp, "%s vs %s", prior, name)
		}
		seen[name] = fp
	}
}

func TestFingerprintIgnoresTimeout(t *testing.T) {
	a := SpeakRequest{Text: "goal!", Timeout: time.Second}
	b := SpeakRequest{Text: "goal!", Timeout: time.Minute}
	assert.Equal(t, Fingerprint(&a), Fingerprint(&b))
}

func TestFingerprintFormat(t *testing.T) {
	fp := Fingerprint(&SpeakRequest{Text: "hi"})
	assert.True(t, strings.HasPrefix(fp, "avatar:speak:"))
	assert.Len(t, strings.TrimPrefix(fp, "avatar:speak:"), 32)
}
