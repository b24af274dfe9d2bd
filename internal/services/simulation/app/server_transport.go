package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/leximpact/socio-fiscal-api/internal/platform/telemetry/metrics"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/decomposition"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/engine"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/reform"
	"github.com/tidwall/gjson"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 8 << 20
	maxDecodeErrorsPerConn = 3

	missingValue = "Missing value"
	invalidValue = "Invalid value"
)

type wsEndpoint struct {
	name string
	// reform reports whether the endpoint accepts a reform key.
	reform bool
}

var (
	endpointWaterfall  = wsEndpoint{name: "ws"}
	endpointSimulation = wsEndpoint{name: "simulations_calculate", reform: true}
)

// wsSession is the state accumulated over the messages of one connection.
// Each key is replaced as a whole when a message carries it.
type wsSession struct {
	endpoint      wsEndpoint
	decomposition json.RawMessage
	period        json.RawMessage
	situation     json.RawMessage
	reform        json.RawMessage
}

// apply merges message into the session and reports whether it asked for a
// calculation.
func (s *wsSession) apply(message map[string]json.RawMessage) bool {
	calculate := false
	for key, value := range message {
		switch key {
		case "calculate":
			calculate = true
		case "decomposition":
			s.decomposition = value
		case "period":
			s.period = value
		case "situation":
			s.situation = value
		case "reform":
			if s.endpoint.reform {
				s.reform = value
			}
		}
	}
	return calculate
}

// wsCalculation is a validated session snapshot.
type wsCalculation struct {
	root      decomposition.Node
	period    string
	situation json.RawMessage
	reform    reform.Reform
}

type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn}
}

func (p *wsPeer) send(payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return websocket.JSON.Send(p.conn, payload)
}

type wsErrors struct {
	Errors map[string]any `json:"errors"`
}

type wsLeafResult struct {
	Code  string    `json:"code"`
	Value []float64 `json:"value"`
}

func (h *handler) wsHandler(endpoint wsEndpoint) http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		h.handleWSConn(conn, endpoint)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
}

func (h *handler) handleWSConn(conn *websocket.Conn, endpoint wsEndpoint) {
	defer func() {
		_ = conn.Close()
	}()
	closed := metrics.WSConnectionOpened()
	defer closed()

	conn.MaxPayloadBytes = maxFramePayloadBytes
	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}

	peer := newWSPeer(conn)
	session := &wsSession{endpoint: endpoint}
	decodeErrors := 0

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				_ = peer.send(frameError("payload too large"))
				continue
			}
			log.Printf("simulation: websocket receive failed: endpoint=%q err=%v", endpoint.name, err)
			return
		}

		var message map[string]json.RawMessage
		if err := json.Unmarshal(data, &message); err != nil || message == nil {
			decodeErrors++
			_ = peer.send(frameError("invalid frame payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if !session.apply(message) {
			continue
		}
		if err := h.calculate(ctx, peer, session); err != nil {
			log.Printf("simulation: websocket send failed: endpoint=%q err=%v", endpoint.name, err)
			return
		}
	}
}

func frameError(message string) wsErrors {
	return wsErrors{Errors: map[string]any{"frame": message}}
}

// calculate validates the session and streams one message per decomposition
// leaf. Validation and engine failures are reported to the client; only
// transport failures are returned.
func (h *handler) calculate(ctx context.Context, peer *wsPeer, session *wsSession) error {
	calc, problems := h.validateSession(ctx, session)
	if len(problems) > 0 {
		return peer.send(wsErrors{Errors: problems})
	}

	counts := engine.EntityCounts(calc.situation)
	leaves := 0
	for leaf := range decomposition.Leaves(calc.root) {
		value, err := h.calculateLeaf(ctx, calc, leaf.Code, counts)
		if err != nil {
			log.Printf("simulation: leaf calculation failed: endpoint=%q code=%q err=%v", session.endpoint.name, leaf.Code, err)
			return peer.send(wsErrors{Errors: map[string]any{
				"calculate": engine.Message(err),
				"code":      leaf.Code,
			}})
		}
		if err := peer.send(wsLeafResult{Code: leaf.Code, Value: value}); err != nil {
			return err
		}
		metrics.RecordLeafStreamed(session.endpoint.name)
		leaves++
	}
	log.Printf("simulation: calculation streamed: endpoint=%q leaves=%d", session.endpoint.name, leaves)
	return nil
}

func (h *handler) calculateLeaf(ctx context.Context, calc wsCalculation, code string, counts map[string]int) ([]float64, error) {
	result, err := h.engine.Calculate(ctx, engine.Request{
		CountryPackage: h.countryPackage,
		Situation:      calc.situation,
		Period:         calc.period,
		Variables:      []string{code},
		Reform:         calc.reform,
	})
	if err != nil {
		return nil, err
	}
	values, err := result.Variable(code)
	if err != nil {
		return nil, err
	}
	return engine.Aggregate(values.Values, counts[values.Entity])
}

func (h *handler) validateSession(ctx context.Context, session *wsSession) (wsCalculation, map[string]any) {
	problems := make(map[string]any)
	var calc wsCalculation

	// Both endpoints treat an empty decomposition or situation as missing,
	// not only null; period is missing only when null.
	if isEmptyJSON(session.decomposition) {
		problems["decomposition"] = missingValue
	} else if root, err := decomposition.Parse(session.decomposition); err != nil {
		problems["decomposition"] = invalidValue
	} else if err := decomposition.Validate(root); err != nil {
		problems["decomposition"] = invalidValue + ": " + err.Error()
	} else {
		calc.root = root
	}

	if isNullJSON(session.period) {
		problems["period"] = missingValue
	} else if period, ok := periodString(session.period); !ok {
		problems["period"] = invalidValue
	} else {
		calc.period = period
	}

	if isEmptyJSON(session.situation) {
		problems["situation"] = missingValue
	} else if !gjson.ParseBytes(session.situation).IsObject() {
		problems["situation"] = invalidValue
	} else {
		calc.situation = session.situation
	}

	if session.endpoint.reform {
		changes, err := reform.Normalize(session.reform)
		switch {
		case err != nil:
			problems["reform"] = invalidValue
		case changes != nil:
			parameters, err := h.parameters(ctx)
			if err != nil {
				problems["reform"] = "Parameter metadata unavailable"
				break
			}
			if unknown := reform.Validate(changes, parameters); unknown != nil {
				problems["reform"] = unknown
				break
			}
			calc.reform = changes
		}
	}
	return calc, problems
}

func isNullJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || gjson.ParseBytes(raw).Type == gjson.Null
}

// isEmptyJSON reports null, false, zero and empty strings, arrays or objects.
func isEmptyJSON(raw json.RawMessage) bool {
	if isNullJSON(raw) {
		return true
	}
	value := gjson.ParseBytes(raw)
	switch value.Type {
	case gjson.False:
		return true
	case gjson.Number:
		return value.Float() == 0
	case gjson.String:
		return value.Str == ""
	case gjson.JSON:
		empty := true
		value.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return empty
	}
	return false
}

// periodString accepts periods sent as strings ("2021", "month:2021-01") or
// bare years.
func periodString(raw json.RawMessage) (string, bool) {
	value := gjson.ParseBytes(raw)
	switch value.Type {
	case gjson.String:
		if value.Str == "" {
			return "", false
		}
		return value.Str, true
	case gjson.Number:
		return value.Raw, true
	}
	return "", false
}
