package kie

import (
	"encoding/json"
	"strings"
)

// flatResultKeys are the known single-URL fields, probed in this order.
// The order is load-bearing: later keys exist because earlier providers do
// not populate earlier ones.
var flatResultKeys = []string{
	"resultUrl", "url", "imageUrl", "resultImageUrl", "image_url", "result_url",
}

// ExtractResultURL locates the finished artifact URL inside an arbitrary poll
// response. Total over any JSON-like input: malformed or unknown shapes yield
// ("", false), never a panic.
//
// The fallback chain, in order:
//  1. an "images" array whose first element is a URL string or an object with
//     a url/imageUrl field;
//  2. known flat keys at three depths (top level, "data", "data.response");
//  3. a "resultUrls" array at the same depths, first element;
//  4. a "resultJson" field holding a JSON-encoded string or an object --
//     re-run the whole chain on its content.
func ExtractResultURL(record any) (string, bool) {
	root, ok := record.(map[string]any)
	if !ok {
		return "", false
	}

	data := asMap(root["data"])
	response := asMap(data["response"])
	if response == nil {
		response = data
	}

	if url, ok := urlFromImages(firstNonNil(response["images"], data["images"])); ok {
		return url, true
	}

	for _, key := range flatResultKeys {
		for _, scope := range []map[string]any{response, data, root} {
			if url, ok := asURL(scope[key]); ok {
				return url, true
			}
		}
	}

	for _, scope := range []map[string]any{response, data, root} {
		if url, ok := urlFromList(scope["resultUrls"]); ok {
			return url, true
		}
	}

	resultJSON := firstNonNil(response["resultJson"], data["resultJson"])
	switch rj := resultJSON.(type) {
	case string:
		if rj == "" {
			return "", false
		}
		var parsed any
		if err := json.Unmarshal([]byte(rj), &parsed); err != nil {
			return "", false
		}
		return ExtractResultURL(parsed)
	case map[string]any:
		return ExtractResultURL(rj)
	}

	return "", false
}

// ExtractVeoResultURL handles the Veo poll family, whose wrapper path
// diverges from the generic chain: the result is a JSON-encoded array string
// under data.info.resultUrls. Falls back to the generic chain when the Veo
// shape is absent.
func ExtractVeoResultURL(record any) (string, bool) {
	root, ok := record.(map[string]any)
	if ok {
		info := asMap(asMap(root["data"])["info"])
		switch ru := info["resultUrls"].(type) {
		case string:
			var urls []string
			if err := json.Unmarshal([]byte(ru), &urls); err == nil && len(urls) > 0 {
				if url, ok := asURL(urls[0]); ok {
					return url, true
				}
			}
		case []any:
			if url, ok := urlFromList(ru); ok {
				return url, true
			}
		}
	}
	return ExtractResultURL(record)
}

// ExtractFor picks the extractor matching the dispatch target.
func ExtractFor(target DispatchTarget, record any) (string, bool) {
	if target == TargetVeo {
		return ExtractVeoResultURL(record)
	}
	return ExtractResultURL(record)
}

func urlFromImages(images any) (string, bool) {
	list, ok := images.([]any)
	if !ok || len(list) == 0 {
		return "", false
	}
	switch first := list[0].(type) {
	case string:
		return asURL(first)
	case map[string]any:
		if url, ok := asURL(first["url"]); ok {
			return url, true
		}
		return asURL(first["imageUrl"])
	}
	return "", false
}

func urlFromList(v any) (string, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return "", false
	}
	return asURL(list[0])
}

// asURL accepts only non-empty strings carrying a URL scheme.
func asURL(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s, true
	}
	return "", false
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func firstNonNil(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
