package cdp

import (
	"github.com/mafredri/cdp/protocol/fetch"

	"pdfrouter/pkg/traffic"
)

// toResponseDetails 将拦截事件折算为引擎输入
func (m *Manager) toResponseDetails(ev *fetch.RequestPausedReply) traffic.ResponseDetails {
	status := 0
	if ev.ResponseStatusCode != nil {
		status = *ev.ResponseStatusCode
	}
	return traffic.ResponseDetails{
		RequestID:  string(ev.RequestID),
		URL:        ev.Request.URL,
		Method:     ev.Request.Method,
		StatusCode: status,
		Headers:    fromHeaderEntries(ev.ResponseHeaders),
		TabID:      string(m.target),
		Type:       m.resourceType(ev),
	}
}

// resourceType 折算协议资源类型：顶层文档与子框架靠主框架 ID 区分
func (m *Manager) resourceType(ev *fetch.RequestPausedReply) traffic.ResourceType {
	switch string(ev.ResourceType) {
	case "Document":
		if m.mainFrameID == "" || string(ev.FrameID) == m.mainFrameID {
			return traffic.ResourceMainFrame
		}
		return traffic.ResourceSubFrame
	case "Object":
		return traffic.ResourceObject
	case "XHR", "Fetch":
		return traffic.ResourceXHR
	default:
		return traffic.ResourceOther
	}
}

func fromHeaderEntries(entries []fetch.HeaderEntry) traffic.Header {
	if len(entries) == 0 {
		return nil
	}
	out := make(traffic.Header, 0, len(entries))
	for _, e := range entries {
		out = append(out, traffic.Entry{Name: e.Name, Value: e.Value})
	}
	return out
}

func toHeaderEntries(headers traffic.Header) []fetch.HeaderEntry {
	if len(headers) == 0 {
		return nil
	}
	out := make([]fetch.HeaderEntry, 0, len(headers))
	for _, e := range headers {
		out = append(out, fetch.HeaderEntry{Name: e.Name, Value: e.Value})
	}
	return out
}
