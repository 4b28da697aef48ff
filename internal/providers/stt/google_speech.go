package stt

import (
	"context"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleSpeech recognizes clips through the Cloud Speech-to-Text API.
// Clips are small (one diarized turn each), so the synchronous Recognize
// call is sufficient.
type GoogleSpeech struct {
	c *speech.Client

	Encoding     speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz int32

	// candidates offered to the API when the caller requests auto-detect
	AltLanguages []string
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{
		c:            c,
		Encoding:     speechpb.RecognitionConfig_LINEAR16,
		SampleRateHz: 16000,
		AltLanguages: []string{"es-ES", "de-DE", "fr-FR", "id-ID"},
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// TranscribeClip recognizes one clip. language examples: "en-US", "id-ID";
// empty means auto-detect among en-US plus AltLanguages.
func (g *GoogleSpeech) TranscribeClip(ctx context.Context, clipPath string, language string) (Result, error) {
	audio, err := os.ReadFile(clipPath)
	if err != nil {
		return Result{}, err
	}

	cfg := &speechpb.RecognitionConfig{
		Encoding:                   g.Encoding,
		SampleRateHertz:            g.SampleRateHz,
		EnableAutomaticPunctuation: true,
	}
	if language == "" {
		cfg.LanguageCode = "en-US"
		cfg.AlternativeLanguageCodes = g.AltLanguages
	} else {
		cfg.LanguageCode = language
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return Result{}, err
	}

	var (
		parts    []string
		detected string
		bestConf float64
	)
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(alt.Transcript))
		if float64(alt.Confidence) >= bestConf {
			bestConf = float64(alt.Confidence)
		}
		if detected == "" && r.LanguageCode != "" {
			detected = r.LanguageCode
		}
	}
	if detected == "" {
		detected = cfg.LanguageCode
	}

	return Result{
		Text:       strings.Join(parts, " "),
		Language:   detected,
		Confidence: bestConf,
	}, nil
}
