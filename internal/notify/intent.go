// Package notify delivers best-effort messages to users' Telegram chats.
// Delivery failures are logged and never returned to callers.
package notify

// Intent is a single message to deliver. FilePath is optional; when set the
// file is sent as a document with Text as its caption.
type Intent struct {
	Handle   string
	Text     string
	FilePath string
	FileName string
}

// Text builds a plain text intent.
func Text(handle, text string) Intent {
	return Intent{Handle: handle, Text: text}
}

// File builds an intent that carries an attachment.
func File(handle, caption, path, name string) Intent {
	return Intent{Handle: handle, Text: caption, FilePath: path, FileName: name}
}

// HasFile reports whether the intent sends a document.
func (i Intent) HasFile() bool {
	return i.FilePath != ""
}
