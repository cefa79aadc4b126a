// Package pages renders the host's HTML pages as templ components. The pages
// are shells: app.css, lobby.js and room.js come from a client bundle the
// deployment supplies under STATIC_DIR, served at /static/.
package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const head = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>`

const lobbyBody = `</title>
<link rel="stylesheet" href="/static/app.css">
</head>
<body>
<main id="lobby">
  <h1>GOAT Rooms</h1>
  <form id="create-room">
    <input name="name" maxlength="40" placeholder="Room name">
    <button type="submit">Create room</button>
  </form>
  <form id="join-room">
    <input name="code" maxlength="12" placeholder="Room code" autocomplete="off">
    <button type="submit">Join room</button>
  </form>
</main>
<script src="/static/lobby.js"></script>
</body>
</html>
`

const roomBody = `</title>
<link rel="stylesheet" href="/static/app.css">
</head>
<body>
<main id="room">
  <header><h1 id="room-name"></h1><code id="room-code"></code></header>
  <section id="join"><input id="display-name" maxlength="24"><button id="join-btn">Join</button></section>
  <section id="owner-tools" hidden>
    <button id="start-btn">Start</button>
    <label><input type="checkbox" id="open-toggle"> Open</label>
    <ul id="waiting"></ul>
  </section>
  <ul id="players"></ul>
  <pre id="game"></pre>
</main>
<script src="/static/room.js"></script>
</body>
</html>
`

func page(title, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, head); err != nil {
			return err
		}
		if _, err := io.WriteString(w, templ.EscapeString(title)); err != nil {
			return err
		}
		_, err := io.WriteString(w, body)
		return err
	})
}

// Lobby is the create/join page.
func Lobby() templ.Component {
	return page("GOAT Rooms", lobbyBody)
}

// Room is the room page. The browser reads the room code from
// sessionStorage and connects over the websocket.
func Room(title string) templ.Component {
	if title == "" {
		title = "Room"
	}
	return page(title, roomBody)
}
