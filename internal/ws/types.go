package ws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Command names the kind of packet on the wire.
type Command string

const (
	CommandHandshake       Command = "Handshake"
	CommandACK             Command = "ACK"
	CommandEcho            Command = "Echo"
	CommandSetup           Command = "Setup"
	CommandGameInteraction Command = "GameInteraction"
	CommandActionAck       Command = "ActionAck"
	CommandScreenshot      Command = "Screenshot"
	CommandReset           Command = "Reset"
	CommandClientClose     Command = "ClientClose"
	CommandError           Command = "Error"
	CommandEndExperiment   Command = "EndExperiment"
)

// ServerID is the well-known identity of the relay.
const ServerID = "0000-0000-0000-0000"

// Relay greeting and handshake reply texts.
const (
	MessageServerBanner       = "action perception server V1.0."
	MessageIDRegistered       = "your network id is registered"
	MessageHandshakeAck       = "Handshake Acknowledged!"
	MessageResetToMainMenu    = "reset to main menu"
	MessageRegisteringPartner = "Action Perception client attempting to register partner id with the game"
)

// Packet is the envelope every peer exchanges. Data is the live binary
// attachment; Payload only holds its base64 form while on the wire.
type Packet struct {
	Command  Command  `json:"command"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Messages []string `json:"messages"`
	Payload  string   `json:"payload"`
	Data     []byte   `json:"-"`
}

func NewPacket(cmd Command, from, to string, messages []string, data []byte) *Packet {
	if messages == nil {
		messages = []string{}
	}
	return &Packet{
		Command:  cmd,
		From:     from,
		To:       to,
		Messages: messages,
		Data:     data,
	}
}

// PrepareForSerialization fixes the base64 payload from Data.
func (p *Packet) PrepareForSerialization() {
	if len(p.Data) == 0 {
		p.Payload = ""
		return
	}
	p.Payload = base64.StdEncoding.EncodeToString(p.Data)
}

// LoadFromSerialized restores Data from the base64 payload.
func (p *Packet) LoadFromSerialized() error {
	if p.Payload == "" {
		p.Data = nil
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(p.Payload)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	p.Data = data
	return nil
}

// FirstMessage returns messages[0] or "".
func (p *Packet) FirstMessage() string {
	if len(p.Messages) == 0 {
		return ""
	}
	return p.Messages[0]
}

// Encode serializes the packet, encoding the payload just before marshaling.
func Encode(p *Packet) ([]byte, error) {
	p.PrepareForSerialization()
	if p.Messages == nil {
		p.Messages = []string{}
	}
	return json.Marshal(p)
}

// Decode parses one frame and decodes its payload.
func Decode(raw []byte) (*Packet, error) {
	var p Packet
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse packet: %w", err)
	}
	if err := p.LoadFromSerialized(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Peek reads only the routing fields and leaves the payload untouched.
func Peek(raw []byte) (from, to string, cmd Command, err error) {
	var hdr struct {
		Command Command `json:"command"`
		From    string  `json:"from"`
		To      string  `json:"to"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return "", "", "", fmt.Errorf("parse packet: %w", err)
	}
	return hdr.From, hdr.To, hdr.Command, nil
}
