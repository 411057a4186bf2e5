//go:build !linux

package input

import "context"

// Run is unavailable off Linux.
func (s *Source) Run(ctx context.Context, paths []string) error {
	return ErrUnsupported
}
