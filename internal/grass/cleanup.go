package grass

import "context"

// Cleanup removes every temporary map the session registered, drops a
// leftover mask and reactivates a stashed one. It is meant to run
// deferred, on success and failure alike; removal errors are only
// logged.
func (s *Session) Cleanup(ctx context.Context) {
	s.mu.Lock()
	rasters := append([]string(nil), s.rmRasters...)
	vectors := append([]string(nil), s.rmVectors...)
	groups := append([]string(nil), s.rmGroups...)
	regions := append([]string(nil), s.rmRegions...)
	strds := append([]string(nil), s.rmSTRDS...)
	s.mu.Unlock()

	// drop any mask left behind before removing its source raster
	if s.HasMask(ctx) {
		if err := s.RemoveMask(ctx); err != nil {
			s.log.Warnf("cleanup: removing mask: %v", err)
		}
	}

	for _, strdsName := range strds {
		if _, err := s.Run(ctx, "t.remove", Options{
			Params: map[string]string{"inputs": strdsName},
			Flags:  "rf",
			Quiet:  true,
		}); err != nil {
			s.log.Warnf("cleanup: removing strds <%s>: %v", strdsName, err)
		}
	}

	s.removeAll(ctx, "raster", rasters)
	s.removeAll(ctx, "vector", vectors)
	s.removeAll(ctx, "group", groups)
	s.removeAll(ctx, "region", regions)

	if err := s.UnstashMask(ctx); err != nil {
		s.log.Warnf("cleanup: reactivating saved mask: %v", err)
	}
}

func (s *Session) removeAll(ctx context.Context, mapType string, names []string) {
	element := mapType
	if mapType == "region" {
		element = "windows"
	}
	for _, name := range names {
		if !s.FindFile(ctx, name, element) {
			continue
		}
		if _, err := s.Run(ctx, "g.remove", Options{
			Params: map[string]string{"type": mapType, "name": name},
			Flags:  "f",
			Quiet:  true,
		}); err != nil {
			s.log.Warnf("cleanup: removing %s <%s>: %v", mapType, name, err)
		}
	}
}
