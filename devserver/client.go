package devserver

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voicecue/encoder"
	"voicecue/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20
)

// Reply is the data of a serverResponse event.
type Reply struct {
	Function  string `json:"nom_fonction,omitempty"`
	Arguments any    `json:"arguments,omitempty"`
	ResultID  string `json:"resultId,omitempty"`
}

// Recording summarises what a client streamed between audioStart and audioEnd.
type Recording struct {
	Client     string
	Chunks     int
	LastBytes  int
	SampleRate int
	Duration   time.Duration
}

type Responder func(Recording) Reply

func (s *Server) cannedReply(rec Recording) Reply {
	if rec.Chunks == 0 {
		return Reply{
			Function:  transport.EventAskForMoreInfo,
			Arguments: []string{"Je n'ai rien entendu, peux-tu répéter ?"},
		}
	}
	return Reply{
		Function:  "answer",
		Arguments: []string{"Voici la réponse à ta question."},
		ResultID:  s.nextResultID(),
	}
}

type client struct {
	srv  *Server
	conn *websocket.Conn
	id   string
	send chan []byte

	rec       Recording
	recording bool
}

func newClient(s *Server, conn *websocket.Conn, id string) *client {
	return &client{srv: s, conn: conn, id: id, send: make(chan []byte, 64)}
}

func (c *client) readPump() {
	defer func() {
		c.srv.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.srv.logger.Error().Err(err).Str("client", c.id).Msg("websocket error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.srv.logger.Warn().Int("type", messageType).Msg("unexpected message type")
			continue
		}
		env, err := transport.Unmarshal(message)
		if err != nil {
			c.srv.logger.Warn().Err(err).Str("client", c.id).Msg("bad frame")
			continue
		}
		c.handle(env)
	}
}

func (c *client) handle(env transport.Envelope) {
	log := c.srv.logger.With().Str("client", c.id).Str("event", env.Event).Logger()

	switch env.Event {
	case transport.EventAudioStart:
		c.rec = Recording{Client: c.id}
		c.recording = true
		log.Info().Msg("recording started")

	case transport.EventAudioChunk:
		var p transport.ChunkPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Msg("bad chunk payload")
			return
		}
		raw, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			log.Warn().Err(err).Msg("chunk is not base64")
			return
		}
		if !c.recording {
			log.Warn().Msg("chunk outside a recording")
		}
		c.rec.Chunks++
		c.rec.LastBytes = len(raw)
		if pcm, rate, ok := encoder.ParseWAV(raw); ok && rate > 0 {
			c.rec.SampleRate = rate
			c.rec.Duration = time.Duration(len(pcm)/2) * time.Second / time.Duration(rate)
		} else if p.Metadata != nil {
			c.rec.SampleRate = p.Metadata.SampleRate
		}
		log.Debug().Int("bytes", len(raw)).Int("chunk", c.rec.Chunks).Msg("chunk received")

	case transport.EventAudioEnd:
		c.recording = false
		log.Info().Int("chunks", c.rec.Chunks).Dur("audio", c.rec.Duration).Msg("recording ended")
		c.emit(transport.EventServerResponse, c.srv.cfg.Responder(c.rec))

	case transport.EventAskForMoreInfo:
		c.emit(transport.EventServerResponse, Reply{
			Function:  transport.EventAskForMoreInfo,
			Arguments: []string{"Plus d'infos nécessaires !"},
		})

	case transport.EventSendMessage:
		var text string
		if err := json.Unmarshal(env.Data, &text); err != nil {
			log.Warn().Err(err).Msg("sendMessage expects a string")
			return
		}
		if strings.Contains(text, "question") {
			c.emit(transport.EventServerResponse, Reply{
				Function:  transport.EventAskForMoreInfo,
				Arguments: []string{"Peux-tu préciser ta question ?"},
			})
			return
		}
		c.emit(transport.EventServerResponse, Reply{
			Function:  "answer",
			Arguments: []string{"Voici la réponse à ta question."},
		})

	default:
		log.Warn().Msg("unknown event")
	}
}

func (c *client) emit(event string, payload any) {
	frame, err := transport.Marshal(event, payload)
	if err != nil {
		c.srv.logger.Error().Err(err).Msg("encoding reply")
		return
	}
	select {
	case c.send <- frame:
	default:
		c.srv.logger.Warn().Str("client", c.id).Msg("send buffer full, reply dropped")
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.srv.logger.Error().Err(err).Str("client", c.id).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func saveFile(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
