package invoker

import "encoding/json"

// frame is the union of the three JSON shapes the debug-mode stream can
// carry. Unknown or malformed lines fail to unmarshal and are silently
// dropped, per spec §4.5.
type frame struct {
	Delta *struct {
		Text string `json:"text"`
	} `json:"delta"`
	Message *struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Result string `json:"result"`
}

// extractText applies the documented preference order — content-block-delta
// over assistant-message-content-blocks over final-result — and reports
// whether this frame was itself a delta, so the caller can latch seenDelta
// and ignore the fallback channels on every subsequent frame.
func extractText(line string, seenDelta bool) (text string, isDelta bool, ok bool) {
	var f frame
	if err := json.Unmarshal([]byte(line), &f); err != nil {
		return "", false, false
	}
	if f.Delta != nil && f.Delta.Text != "" {
		return f.Delta.Text, true, true
	}
	if seenDelta {
		return "", false, false
	}
	if f.Message != nil {
		var out string
		for _, block := range f.Message.Content {
			out += block.Text
		}
		if out != "" {
			return out, false, true
		}
	}
	if f.Result != "" {
		return f.Result, false, true
	}
	return "", false, false
}
