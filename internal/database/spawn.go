package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
	"github.com/hbomb79/Marquee/pkg/docker"
)

// InitialiseDockerDatabase spawns a PostgreSQL container configured
// to match the provided database config. Crashes of the container after a
// successful spawn are reported on the provided error channel.
func InitialiseDockerDatabase(dockerManager docker.DockerManager, config DatabaseConfig, errChannel chan error) (docker.DockerContainer, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Sprintf("Cannot initialize docker db volume mount as cannot find user home dir: %s", err.Error()))
	}

	dbDataPath := filepath.Join(homeDir, "marquee_db.dat")
	if err := os.MkdirAll(dbDataPath, os.ModeDir); err != nil {
		return nil, err
	}

	containerConfig := &container.Config{
		Image: "postgres:14.1-alpine",
		Env: []string{
			fmt.Sprintf("POSTGRES_PASSWORD=%s", config.Password),
			fmt.Sprintf("POSTGRES_USER=%s", config.User),
			fmt.Sprintf("POSTGRES_DB=%s", config.Name),
			fmt.Sprintf("DATABASE_HOST=%s", config.Host),
		},
		ExposedPorts: nat.PortSet{
			"5432": struct{}{},
		},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			nat.Port(config.Port): []nat.PortBinding{{
				HostIP:   config.Host,
				HostPort: config.Port,
			}},
		},
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: dbDataPath,
				Target: "/var/lib/postgresql/data",
			},
		},
	}

	db := docker.NewDockerContainer("db", "postgres:14.1-alpine", containerConfig, hostConfig)
	if err := dockerManager.SpawnContainer(db); err != nil {
		return nil, err
	}

	// Watch for container crash (teardown)
	go func() {
		st, err := dockerManager.WaitForContainer(db, docker.CRASHED)
		if st != docker.CRASHED || err != nil {
			return
		}

		errChannel <- fmt.Errorf("container %s has crashed", db)
	}()

	return db, nil
}

// InitialiseDockerPgAdmin spawns a pgAdmin container for local inspection
// of the Marquee database.
func InitialiseDockerPgAdmin(dockerManager docker.DockerManager, errChannel chan error) (docker.DockerContainer, error) {
	containerConfig := &container.Config{
		Image: "dpage/pgadmin4",
		Env: []string{
			"PGADMIN_DEFAULT_EMAIL=admin@admin.com",
			"PGADMIN_DEFAULT_PASSWORD=root",
		},
		ExposedPorts: nat.PortSet{
			"80": struct{}{},
		},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			"80": []nat.PortBinding{{
				HostIP:   "0.0.0.0",
				HostPort: "5050",
			}},
		},
	}

	pgAdmin := docker.NewDockerContainer("pgAdmin", "dpage/pgadmin4", containerConfig, hostConfig)
	if err := dockerManager.SpawnContainer(pgAdmin); err != nil {
		return nil, err
	}

	go func() {
		st, err := dockerManager.WaitForContainer(pgAdmin, docker.CRASHED)
		if st != docker.CRASHED || err != nil {
			return
		}

		errChannel <- fmt.Errorf("container %s has crashed", pgAdmin)
	}()

	return pgAdmin, nil
}
