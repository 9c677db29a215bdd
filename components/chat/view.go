// Package chat renders room chat fragments for htmx clients.
package chat

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

import "github.com/johndosdos/synapse/internal/model"

func bubbleSide(fromViewer bool) string {
	if fromViewer {
		return "items-end"
	}
	return "items-start"
}

func bubbleTone(fromViewer bool) string {
	if fromViewer {
		return "bg-primary text-white rounded-tr-none"
	}
	return "bg-primary/5 text-foreground/70 rounded-tl-none"
}

// continuesRun reports whether msgs[i] has the same author as the message
// before it.
func continuesRun(msgs []model.ChatMessage, i int) bool {
	return i > 0 && msgs[i].UserID == msgs[i-1].UserID
}
