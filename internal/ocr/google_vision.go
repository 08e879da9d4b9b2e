package ocr

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/MangalKhundongbam/exe-semge/internal/imaging"
)

// visionHints maps tesseract language codes to the BCP-47 hints Vision expects.
var visionHints = map[string]string{
	"eng": "en",
	"mni": "mni",
	"hin": "hi",
	"ben": "bn",
}

// visionScripts maps a dominant detected language to a script label.
var visionScripts = map[string]ScriptLabel{
	"en":  ScriptLatin,
	"mni": ScriptMeeteiMayek,
	"hi":  ScriptDevanagari,
	"bn":  ScriptBengali,
}

// visionAnnotator is the subset of the Vision client the engine needs.
type visionAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

type visionClient struct {
	client *vision.ImageAnnotatorClient
}

func (v visionClient) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
	return v.client.BatchAnnotateImages(ctx, req)
}

func (v visionClient) Close() error { return v.client.Close() }

// VisionEngine implements Engine using Google Cloud Vision document text detection.
type VisionEngine struct {
	client    visionAnnotator
	languages []string
}

// NewVisionEngine creates a Vision-backed engine with credentials from environment.
// It expects either GOOGLE_CREDENTIALS JSON or a GOOGLE_APPLICATION_CREDENTIALS path,
// and falls back to application default credentials. languages is the set the
// engine advertises as installed.
func NewVisionEngine(ctx context.Context, languages []string) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrEngineUnavailable, "no Google Cloud credentials found in environment")
		}
	}

	return newVisionEngineWithClient(visionClient{client: client}, languages), nil
}

func newVisionEngineWithClient(client visionAnnotator, languages []string) *VisionEngine {
	return &VisionEngine{client: client, languages: copyStrings(languages)}
}

func (v *VisionEngine) Name() string { return "vision" }

// InstalledLanguages returns the configured language list. Vision has no
// per-language install step, so the configuration is the capability set.
func (v *VisionEngine) InstalledLanguages(ctx context.Context) ([]string, error) {
	return copyStrings(v.languages), nil
}

// DetectScript maps the page's dominant detected language to a script label.
func (v *VisionEngine) DetectScript(ctx context.Context, img image.Image) (ScriptLabel, error) {
	annotation, err := v.annotate(ctx, "DetectScript", img, nil)
	if err != nil {
		return ScriptUnknown, fmt.Errorf("%w: %v", ErrScriptDetection, err)
	}

	var best *visionpb.TextAnnotation_DetectedLanguage
	for _, page := range annotation.GetPages() {
		for _, lang := range page.GetProperty().GetDetectedLanguages() {
			if best == nil || lang.GetConfidence() > best.GetConfidence() {
				best = lang
			}
		}
	}
	if best == nil {
		return ScriptUnknown, fmt.Errorf("%w: no detected languages", ErrScriptDetection)
	}
	if label, ok := visionScripts[best.GetLanguageCode()]; ok {
		return label, nil
	}
	return ScriptUnknown, nil
}

// RecognizeText returns the full text annotation for the image.
func (v *VisionEngine) RecognizeText(ctx context.Context, img image.Image, langs []string) (string, error) {
	annotation, err := v.annotate(ctx, "RecognizeText", img, langs)
	if err != nil {
		return "", err
	}
	return annotation.GetText(), nil
}

// RecognizeStructured flattens the block/paragraph/word hierarchy into words.
// Vision has no line level, so the line index advances on detected line breaks.
func (v *VisionEngine) RecognizeStructured(ctx context.Context, img image.Image, lang string) ([]Word, error) {
	annotation, err := v.annotate(ctx, "RecognizeStructured", img, []string{lang})
	if err != nil {
		return nil, err
	}
	return flattenAnnotation(annotation), nil
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func (v *VisionEngine) annotate(ctx context.Context, op string, img image.Image, langs []string) (*visionpb.TextAnnotation, error) {
	content, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to encode image")
	}

	var hints []string
	for _, l := range langs {
		if h, ok := visionHints[l]; ok {
			hints = append(hints, h)
		} else {
			hints = append(hints, l)
		}
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: hints},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, err, "Vision API call failed")
	}
	if len(resp.GetResponses()) == 0 {
		return nil, NewOCRError(op, ErrPageOCRFailed, "no response from Vision API")
	}

	r := resp.GetResponses()[0]
	if r.GetError() != nil {
		return nil, NewOCRError(op, ErrPageOCRFailed, fmt.Sprintf("Vision API error: %s", r.GetError().GetMessage()))
	}
	if r.GetFullTextAnnotation() == nil {
		return &visionpb.TextAnnotation{}, nil
	}
	return r.GetFullTextAnnotation(), nil
}

func flattenAnnotation(annotation *visionpb.TextAnnotation) []Word {
	var words []Word
	for _, page := range annotation.GetPages() {
		for bi, block := range page.GetBlocks() {
			for pi, para := range block.GetParagraphs() {
				line := 1
				for _, w := range para.GetWords() {
					var sb strings.Builder
					lineBreak := false
					for _, s := range w.GetSymbols() {
						sb.WriteString(s.GetText())
						switch s.GetProperty().GetDetectedBreak().GetType() {
						case visionpb.TextAnnotation_DetectedBreak_LINE_BREAK,
							visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE:
							lineBreak = true
						}
					}
					words = append(words, Word{
						Text:       sb.String(),
						Block:      bi + 1,
						Paragraph:  pi + 1,
						Line:       line,
						Box:        polyRect(w.GetBoundingBox()),
						Confidence: TextConfidence(float64(w.GetConfidence()) * 100),
					})
					if lineBreak {
						line++
					}
				}
			}
		}
	}
	return words
}

func polyRect(poly *visionpb.BoundingPoly) image.Rectangle {
	vertices := poly.GetVertices()
	if len(vertices) == 0 {
		return image.Rectangle{}
	}
	minX, minY := int(vertices[0].GetX()), int(vertices[0].GetY())
	maxX, maxY := minX, minY
	for _, vx := range vertices[1:] {
		x, y := int(vx.GetX()), int(vx.GetY())
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return image.Rect(minX, minY, maxX, maxY)
}
