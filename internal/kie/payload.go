package kie

import "strings"

// DispatchTarget selects the downstream path for a built payload.
type DispatchTarget string

const (
	// TargetJobs is the generic market API: POST /api/v1/jobs/createTask.
	TargetJobs DispatchTarget = "jobs"
	// TargetGPT4o is the dedicated GPT-4o image endpoint family.
	TargetGPT4o DispatchTarget = "gpt4o"
	// TargetVeo is the dedicated Veo video endpoint family.
	TargetVeo DispatchTarget = "veo"
	// TargetAutomation bypasses the provider entirely; the payload is handed
	// to the configured n8n workflow instead.
	TargetAutomation DispatchTarget = "automation"
)

// Request carries the user-facing generation parameters before adaptation.
type Request struct {
	Model        string
	Prompt       string
	AspectRatio  string
	Resolution   string
	OutputFormat string
	Quality      string
	Duration     int
	Sound        bool
	ImageURLs    []string
}

// Payload is an adapted provider request.
type Payload struct {
	Body   map[string]any
	Target DispatchTarget
	// Model is the provider model actually dispatched; it may differ from the
	// logical id when a family substitutes a no-reference variant.
	Model string
	// DroppedRefs counts image references silently discarded because the
	// family accepts fewer than were supplied. Callers should log this.
	DroppedRefs int
}

// familySpec describes how one provider family shapes its request body.
// Adding a model is a registry addition, not a code change.
type familySpec struct {
	Target         DispatchTarget
	ProviderModel  string // substituted provider model id; empty keeps the logical id
	NoRefModel     string // substituted instead when zero image refs are supplied
	RefsField      string // field name carrying image references
	RefsCap        int
	EditModeFlag   bool // families that want "mode":"edit" alongside refs
	PromptLimit    int
	SizeField      string            // field name carrying the aspect-ratio value
	SizeMap        map[string]string // allow-list; unknown values map to SizeDefault
	SizeDefault    string
	FormatFixed    string // forces the output format when non-empty
	FormatDefault  string
	WithResolution bool
	WithQuality    bool
	WithDuration   bool
	WithSound      bool
	Extras         map[string]any // constant fields merged into the body
}

// marketRatios is the aspect-ratio allow-list of the generic jobs API.
var marketRatios = map[string]string{
	"1:1": "1:1", "16:9": "16:9", "9:16": "9:16",
	"4:3": "4:3", "3:4": "3:4", "2:3": "2:3", "3:2": "3:2",
	"5:4": "5:4", "4:5": "4:5", "21:9": "21:9", "auto": "auto",
}

var gpt4oSizes = map[string]string{
	"1:1": "1:1", "3:2": "3:2", "2:3": "2:3",
}

var veoRatios = map[string]string{
	"16:9": "16:9", "9:16": "9:16",
}

// families maps logical model ids to their provider family descriptors.
var families = map[string]familySpec{
	"nanobanana": {
		Target:        TargetJobs,
		ProviderModel: "google/nano-banana-edit",
		NoRefModel:    "google/nano-banana",
		RefsField:     "image_urls",
		RefsCap:       10,
		EditModeFlag:  true,
		PromptLimit:   5000,
		SizeField:     "image_size",
		SizeMap:       marketRatios,
		SizeDefault:   "auto",
		FormatFixed:   "png",
	},
	"nanobanana_pro": {
		Target:         TargetJobs,
		ProviderModel:  "nano-banana-pro",
		RefsField:      "image_input",
		RefsCap:        10,
		PromptLimit:    5000,
		SizeField:      "aspect_ratio",
		SizeMap:        marketRatios,
		SizeDefault:    "auto",
		FormatDefault:  "png",
		WithResolution: true,
	},
	"seedream4": {
		Target:        TargetJobs,
		ProviderModel: "bytedance/seedream-v4-edit",
		NoRefModel:    "bytedance/seedream-v4-text-to-image",
		RefsField:     "image_urls",
		RefsCap:       5,
		PromptLimit:   5000,
		SizeField:     "image_size",
		SizeMap:       marketRatios,
		SizeDefault:   "auto",
		FormatDefault: "png",
	},
	"seedream4.5": {
		Target:        TargetJobs,
		ProviderModel: "seedream/4.5-edit",
		NoRefModel:    "seedream/4.5-text-to-image",
		RefsField:     "image_urls",
		RefsCap:       5,
		PromptLimit:   5000,
		SizeField:     "image_size",
		SizeMap:       marketRatios,
		SizeDefault:   "auto",
		FormatDefault: "png",
	},
	"flux2": {
		Target:        TargetJobs,
		ProviderModel: "flux2/pro-image-to-image",
		NoRefModel:    "flux2/pro-text-to-image",
		RefsField:     "image_urls",
		RefsCap:       5,
		PromptLimit:   5000,
		SizeField:     "image_size",
		SizeMap:       marketRatios,
		SizeDefault:   "auto",
		FormatDefault: "png",
	},
	"flux2_flex": {
		Target:        TargetJobs,
		ProviderModel: "flux2/flex-image-to-image",
		NoRefModel:    "flux2/flex-text-to-image",
		RefsField:     "image_urls",
		RefsCap:       5,
		PromptLimit:   5000,
		SizeField:     "image_size",
		SizeMap:       marketRatios,
		SizeDefault:   "auto",
		FormatDefault: "png",
	},
	"gpt-4o": {
		Target:      TargetGPT4o,
		RefsField:   "filesUrl",
		RefsCap:     5,
		PromptLimit: 3000,
		SizeField:   "size",
		SizeMap:     gpt4oSizes,
		SizeDefault: "1:1",
		Extras:      map[string]any{"nVariants": 1},
	},
	"veo3": {
		Target:        TargetVeo,
		ProviderModel: "veo3",
		RefsField:     "imageUrls",
		RefsCap:       2,
		PromptLimit:   10000,
		SizeField:     "aspectRatio",
		SizeMap:       veoRatios,
		SizeDefault:   "16:9",
		WithSound:     true,
		Extras:        map[string]any{"enableFallback": false},
	},
	"veo3_fast": {
		Target:        TargetVeo,
		ProviderModel: "veo3_fast",
		RefsField:     "imageUrls",
		RefsCap:       2,
		PromptLimit:   10000,
		SizeField:     "aspectRatio",
		SizeMap:       veoRatios,
		SizeDefault:   "16:9",
		WithSound:     true,
		Extras:        map[string]any{"enableFallback": false},
	},
	"sora2": {
		Target:        TargetJobs,
		ProviderModel: "sora-2-image-to-video",
		NoRefModel:    "sora-2-text-to-video",
		RefsField:     "image_urls",
		RefsCap:       1,
		PromptLimit:   5000,
		SizeField:     "aspect_ratio",
		SizeMap:       veoRatios,
		SizeDefault:   "16:9",
		WithQuality:   true,
		WithDuration:  true,
		WithSound:     true,
	},
}

// workflowFamily serves every "workflow/..." id: such requests never reach
// the provider and are fanned out to the configured automation webhooks.
var workflowFamily = familySpec{
	Target:      TargetAutomation,
	PromptLimit: 10000,
}

// defaultFamily keeps unknown models working against the generic jobs API
// with the permissive market defaults.
var defaultFamily = familySpec{
	Target:        TargetJobs,
	RefsField:     "image_urls",
	RefsCap:       5,
	PromptLimit:   5000,
	SizeField:     "image_size",
	SizeMap:       marketRatios,
	SizeDefault:   "auto",
	FormatDefault: "png",
}

// TargetForModel resolves the dispatch target a logical model id routes to.
// Poll calls need it because the poll endpoint follows the create endpoint.
func TargetForModel(model string) DispatchTarget {
	return familyFor(model).Target
}

func familyFor(model string) familySpec {
	if spec, ok := families[model]; ok {
		return spec
	}
	if strings.HasPrefix(model, "workflow/") {
		return workflowFamily
	}
	return defaultFamily
}

// BuildPayload adapts a logical generation request into the provider-specific
// body and dispatch target. Pure: no I/O, no config.
func BuildPayload(req Request) (Payload, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Payload{}, &AdapterError{Reason: "prompt is empty"}
	}

	spec := familyFor(req.Model)

	prompt = truncateRunes(prompt, spec.PromptLimit)

	refs := req.ImageURLs
	dropped := 0
	if spec.RefsCap > 0 && len(refs) > spec.RefsCap {
		dropped = len(refs) - spec.RefsCap
		refs = refs[:spec.RefsCap]
	}

	model := req.Model
	if spec.ProviderModel != "" {
		model = spec.ProviderModel
	}
	if len(refs) == 0 && spec.NoRefModel != "" {
		model = spec.NoRefModel
	}

	switch spec.Target {
	case TargetAutomation:
		return Payload{
			Body: map[string]any{
				"model":         req.Model,
				"prompt":        prompt,
				"aspect_ratio":  req.AspectRatio,
				"resolution":    req.Resolution,
				"output_format": req.OutputFormat,
				"quality":       req.Quality,
				"duration":      req.Duration,
				"sound":         req.Sound,
				"image_urls":    refs,
			},
			Target:      TargetAutomation,
			Model:       req.Model,
			DroppedRefs: dropped,
		}, nil

	case TargetGPT4o:
		body := map[string]any{
			"prompt":       prompt,
			spec.SizeField: mapSize(spec, req.AspectRatio),
		}
		for k, v := range spec.Extras {
			body[k] = v
		}
		if len(refs) > 0 {
			body[spec.RefsField] = refs
		}
		return Payload{Body: body, Target: TargetGPT4o, Model: "gpt4o-image", DroppedRefs: dropped}, nil

	case TargetVeo:
		body := map[string]any{
			"prompt":       prompt,
			"model":        model,
			spec.SizeField: mapSize(spec, req.AspectRatio),
		}
		for k, v := range spec.Extras {
			body[k] = v
		}
		if len(refs) > 0 {
			body[spec.RefsField] = refs
		}
		if spec.WithSound {
			body["generateAudio"] = req.Sound
		}
		return Payload{Body: body, Target: TargetVeo, Model: model, DroppedRefs: dropped}, nil

	default: // TargetJobs
		input := map[string]any{
			"prompt":       prompt,
			spec.SizeField: mapSize(spec, req.AspectRatio),
		}
		if format := resolveFormat(spec, req.OutputFormat); format != "" {
			input["output_format"] = format
		}
		if spec.WithResolution && req.Resolution != "" {
			input["resolution"] = req.Resolution
		}
		if spec.WithQuality && req.Quality != "" {
			input["quality"] = strings.ToLower(req.Quality)
		}
		if spec.WithDuration && req.Duration > 0 {
			input["duration"] = req.Duration
		}
		if spec.WithSound {
			input["sound"] = req.Sound
		}
		if len(refs) > 0 {
			input[spec.RefsField] = refs
			if spec.EditModeFlag {
				input["mode"] = "edit"
			}
		}
		body := map[string]any{
			"model": model,
			"input": input,
		}
		return Payload{Body: body, Target: TargetJobs, Model: model, DroppedRefs: dropped}, nil
	}
}

// mapSize passes the aspect ratio through the family allow-list; unknown
// values become the family default because the provider rejects raw enums.
func mapSize(spec familySpec, ratio string) string {
	ratio = strings.TrimSpace(ratio)
	if ratio == "" {
		return spec.SizeDefault
	}
	if mapped, ok := spec.SizeMap[ratio]; ok {
		return mapped
	}
	return spec.SizeDefault
}

// truncateRunes cuts s to at most limit characters without splitting a rune;
// the family prompt caps count characters, not bytes.
func truncateRunes(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func resolveFormat(spec familySpec, format string) string {
	if spec.FormatFixed != "" {
		return spec.FormatFixed
	}
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "png", "jpeg":
		return format
	case "jpg":
		return "jpeg"
	}
	return spec.FormatDefault
}
