package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// legacyTeamsFile is the pre-directory-per-team layout: a single JSON array
// of Team at the agentmux home root, instead of one config.json per team
// directory.
const legacyTeamsFile = "teams.json"

// MigrateLegacyLayout converts an old flat teams.json (if present) into the
// directory-per-team layout, leaving a timestamped backup of the original.
// A no-op if no legacy file exists.
func (s *Service) MigrateLegacyLayout() error {
	legacyPath := filepath.Join(s.root, legacyTeamsFile)
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read legacy teams file: %v", ErrStorageIO, err)
	}

	var teams []Team
	if err := json.Unmarshal(data, &teams); err != nil {
		return fmt.Errorf("%w: parse legacy teams file: %v", ErrStorageIO, err)
	}

	for _, team := range teams {
		if err := s.SaveTeam(team); err != nil {
			return fmt.Errorf("migrate team %s: %w", team.ID, err)
		}
	}

	backupPath := fmt.Sprintf("%s.bak.%d", legacyPath, Now().Unix())
	if err := os.Rename(legacyPath, backupPath); err != nil {
		return fmt.Errorf("%w: backup legacy teams file: %v", ErrStorageIO, err)
	}
	return nil
}
