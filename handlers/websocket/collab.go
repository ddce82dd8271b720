package websocket

import (
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// SetupSocketIO wires the collaboration protocol onto a socket.io server.
// All room state decisions are made by the registry; this layer only
// translates socket events into registry calls and registry results into
// emits.
func SetupSocketIO(reg *Registry) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		me := SocketID(socket.Id())
		logrus.WithField("socket_id", me).Debug("Socket connected")

		socket.On("join-room", func(datas ...any) {
			if len(datas) == 0 {
				return
			}
			roomID, ok := datas[0].(string)
			if !ok || roomID == "" {
				return
			}

			res := reg.Join(me, roomID)
			room := socketio.Room(roomID)
			socket.Join(room)

			_ = socket.Emit("load-code", res.Content)
			_ = socket.Emit("set-editor-mode", map[string]any{"isEditable": res.Editable})
			_ = srv.In(room).Emit("user-count-update", res.Count)
			if len(res.Others) > 0 {
				_ = socket.Broadcast().To(room).Emit("user-joined", map[string]any{"socketId": string(me)})
			}
		})

		socket.On("sync-code", func(datas ...any) {
			payload := asObject(datas)
			code := stringField(payload, "code")
			target := SocketID(stringField(payload, "toSocketId"))
			if code == "" || target == "" {
				return
			}
			if !reg.AllowSync(me, target) {
				logrus.WithFields(logrus.Fields{
					"socket_id": me,
					"target":    target,
				}).Warn("Dropping sync push to unannounced target")
				return
			}
			_ = srv.To(socketio.Room(target)).Emit("load-code", code)
		})

		socket.On("code-change", func(datas ...any) {
			payload := asObject(datas)
			roomID := stringField(payload, "roomId")
			code := stringField(payload, "code")

			res := reg.Edit(me, roomID, code)
			if !res.Accepted {
				return
			}
			_ = socket.Broadcast().To(socketio.Room(roomID)).Emit("code-change", code)
		})

		socket.On("disconnecting", func(datas ...any) {
			logrus.WithField("socket_id", me).Debug("Socket disconnecting")
			for _, dep := range reg.Disconnect(me) {
				if dep.Deleted {
					continue
				}
				room := socketio.Room(dep.RoomID)
				_ = srv.In(room).Emit("user-count-update", dep.Count)
				if dep.NewAdmin != "" {
					_ = srv.To(socketio.Room(dep.NewAdmin)).Emit("set-editor-mode", map[string]any{"isEditable": true})
				}
			}
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return srv
}

// asObject returns the first event argument as a JSON object, or nil.
func asObject(datas []any) map[string]any {
	if len(datas) == 0 {
		return nil
	}
	obj, _ := datas[0].(map[string]any)
	return obj
}

func stringField(obj map[string]any, key string) string {
	if obj == nil {
		return ""
	}
	s, _ := obj[key].(string)
	return s
}
