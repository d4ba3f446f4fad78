package store

import (
	"context"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

// envFile is the on-disk document: either a single environment or a list
// under "environments".
type envFile struct {
	Environments []Environment `yaml:"environments"`
}

// ImportEnvironmentFile stores every environment found in a YAML file and
// returns their names.
func (s *Store) ImportEnvironmentFile(ctx context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodePersistence, err, "read %s", path)
	}
	envs, err := decodeEnvFile(data)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodePersistence, err, "parse environment file %s", path)
	}
	if len(envs) == 0 {
		return nil, errdef.New(errdef.CodePersistence, "no environments in %s", path)
	}

	names := make([]string, 0, len(envs))
	for _, env := range envs {
		if err := s.SaveEnvironment(ctx, env); err != nil {
			return names, err
		}
		names = append(names, strings.TrimSpace(env.Name))
	}
	return names, nil
}

// ExportEnvironmentFile writes the named environment as a YAML document.
func (s *Store) ExportEnvironmentFile(ctx context.Context, name, path string) error {
	env, ok, err := s.GetEnvironment(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return errdef.New(errdef.CodePersistence, "environment %s not found", name)
	}
	data, err := yaml.Marshal(env)
	if err != nil {
		return errdef.Wrap(errdef.CodePersistence, err, "encode environment %s", name)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errdef.Wrap(errdef.CodePersistence, err, "write %s", path)
	}
	return nil
}

func decodeEnvFile(data []byte) ([]Environment, error) {
	var list envFile
	if err := yaml.Unmarshal(data, &list); err == nil && len(list.Environments) > 0 {
		return list.Environments, nil
	}
	var single Environment
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	if strings.TrimSpace(single.Name) == "" {
		return nil, nil
	}
	return []Environment{single}, nil
}
