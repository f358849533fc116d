package main

import (
	"github.com/pkg/errors"

	socket "github.com/Zereker/hl7socket"
	"github.com/Zereker/hl7socket/framing"
	"github.com/Zereker/hl7socket/internal/config"
)

// newFramerFactory returns a factory producing one framer per connection.
func newFramerFactory(cfg config.Framing) (socket.FramerFactory, error) {
	limit := framing.WithMaxMessageSize(cfg.MaxMessageSize)

	switch cfg.Mode {
	case config.ModeMLLP:
		return func() (socket.Framer, error) {
			return framing.NewMLLPFramer(limit), nil
		}, nil

	case config.ModeDelimiter:
		delim := []byte(cfg.Delimiter)
		return func() (socket.Framer, error) {
			return framing.NewDelimiterFramer(delim, limit)
		}, nil

	case config.ModeFixed:
		order, err := cfg.Order()
		if err != nil {
			return nil, err
		}

		var dec framing.LengthDecoder
		var enc framing.LengthEncoder
		switch cfg.HeaderSize {
		case 2:
			dec, enc = framing.Uint16Length(order, 0)
		case 4:
			dec, enc = framing.Uint32Length(order, 0)
		default:
			return nil, errors.Errorf("unsupported header size %d", cfg.HeaderSize)
		}

		size := cfg.HeaderSize
		return func() (socket.Framer, error) {
			return framing.NewFixedHeaderFramer(size, dec, limit, framing.WithLengthEncoder(enc))
		}, nil
	}

	return nil, errors.Errorf("unknown framing mode %q", cfg.Mode)
}
