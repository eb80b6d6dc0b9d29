package core

import (
	"strconv"
	"strings"
	"sync"

	"slink/protocol"
)

// CommandHandler decodes its own arguments from r.
type CommandHandler func(r *protocol.Reader) error

// Command is one entry of the message dictionary. Responses (device to
// host) have no handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "value=%u sync=%c"
	Handler CommandHandler
}

// CommandRegistry assigns message ids in registration order and renders
// the dictionary text the host fetches with identify.
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   []*Command
	byName     map[string]uint16
	dictionary []byte
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{byName: make(map[string]uint16)}
}

// Register adds a command and returns its id. Registering a name twice
// returns the first id.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		return id
	}
	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{ID: id, Name: name, Format: format, Handler: handler})
	r.byName[name] = id
	r.dictionary = nil
	return id
}

// RegisterResponse adds a device-to-host message.
func (r *CommandRegistry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

// Lookup returns a command by id.
func (r *CommandRegistry) Lookup(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// ID returns the id registered for name.
func (r *CommandRegistry) ID(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Count returns the number of registered messages.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler for id.
func (r *CommandRegistry) Dispatch(id uint16, rd *protocol.Reader) error {
	cmd, ok := r.Lookup(id)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(rd)
}

// Dictionary returns the dictionary text: a version line followed by one
// "id name format" line per message.
func (r *CommandRegistry) Dictionary() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dictionary != nil {
		return r.dictionary
	}
	var b strings.Builder
	b.WriteString("version " + protocol.Version + "\n")
	for _, c := range r.commands {
		kind := "command"
		if c.Handler == nil {
			kind = "response"
		}
		b.WriteString(strconv.Itoa(int(c.ID)) + " " + kind + " " + c.Name)
		if c.Format != "" {
			b.WriteString(" " + c.Format)
		}
		b.WriteByte('\n')
	}
	r.dictionary = []byte(b.String())
	return r.dictionary
}

// Chunk returns up to count bytes of the dictionary starting at offset.
func (r *CommandRegistry) Chunk(offset uint32, count uint32) []byte {
	dict := r.Dictionary()
	if offset >= uint32(len(dict)) {
		return nil
	}
	end := offset + count
	if end > uint32(len(dict)) {
		end = uint32(len(dict))
	}
	return dict[offset:end]
}
