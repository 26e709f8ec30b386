package grass

import "context"

// maskName is the raster GRASS uses for the active mask.
const maskName = "MASK"

// HasMask reports whether a raster mask is active.
func (s *Session) HasMask(ctx context.Context) bool {
	return s.FindFile(ctx, maskName, "raster")
}

// SetMask activates a raster mask.
func (s *Session) SetMask(ctx context.Context, raster string) error {
	_, err := s.Run(ctx, "r.mask", Options{
		Params: map[string]string{"raster": raster},
		Quiet:  true,
	})
	return err
}

// SetMaskVector activates a mask from a vector map.
func (s *Session) SetMaskVector(ctx context.Context, vector string) error {
	_, err := s.Run(ctx, "r.mask", Options{
		Params: map[string]string{"vector": vector},
		Quiet:  true,
	})
	return err
}

// RemoveMask deactivates the current mask, if any.
func (s *Session) RemoveMask(ctx context.Context) error {
	_, err := s.Run(ctx, "r.mask", Options{Flags: "r", Quiet: true})
	return err
}

// StashMask renames an already active mask out of the way so nested mask
// operations do not destroy it. The stashed mask is reactivated by
// UnstashMask or, as a fallback, by Cleanup.
func (s *Session) StashMask(ctx context.Context) error {
	if !s.HasMask(ctx) {
		return nil
	}
	stash := TempName("tmp_mask_old")
	_, err := s.Run(ctx, "g.rename", Options{
		Params: map[string]string{"raster": maskName + "," + stash},
		Quiet:  true,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.savedMask = stash
	s.mu.Unlock()
	return nil
}

// UnstashMask reactivates a mask saved by StashMask.
func (s *Session) UnstashMask(ctx context.Context) error {
	s.mu.Lock()
	stash := s.savedMask
	s.savedMask = ""
	s.mu.Unlock()
	if stash == "" {
		return nil
	}
	return s.SetMask(ctx, stash)
}
