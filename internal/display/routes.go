package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// AttachRoutes mounts the display endpoints on mux:
//
//	GET /display/chart   echarts scatter snapshot of the retained history
//	GET /display/history recent points as JSON
//	GET /display/stream  SSE feed of point/clear/focus events
func (h *Hub) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/display/chart", h.handleChart)
	mux.HandleFunc("/display/history", h.handleHistory)
	mux.HandleFunc("/display/stream", h.handleStream)
}

// handleChart renders the retained history as a square scatter plot. This is
// a self-contained snapshot page; the live view in static/ consumes the SSE
// stream instead.
func (h *Hub) handleChart(w http.ResponseWriter, r *http.Request) {
	points := h.History()

	data := make([]opts.ScatterData, 0, len(points))
	maxAbs := 0.0
	for i, p := range points {
		if math.Abs(p.X) > maxAbs {
			maxAbs = math.Abs(p.X)
		}
		if math.Abs(p.Y) > maxAbs {
			maxAbs = math.Abs(p.Y)
		}
		// third dimension is recency, for the visual map colouring
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, i}})
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	maxRecency := float32(len(points))
	if maxRecency == 0 {
		maxRecency = 1
	}

	// Force a square plot with symmetric axis ranges so sway reads true
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Balance Board COG", Theme: "dark", Width: "700px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Centre of Gravity", Subtitle: fmt.Sprintf("points=%d", len(points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (cm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (cm)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        maxRecency,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("cog", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (h *Hub) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.History()); err != nil {
		http.Error(w, "failed to encode history", http.StatusInternalServerError)
	}
}

// handleStream issues Server-Side Events (SSE) for display updates.
func (h *Hub) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := h.Subscribe()
	defer h.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	w.(http.Flusher).Flush()

	for {
		select {
		case ev, ok := <-c:
			if !ok {
				// Channel closed, exit gracefully
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}
