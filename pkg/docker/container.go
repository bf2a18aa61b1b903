package docker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	dCont "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/hbomb79/Marquee/pkg/logger"
)

type ContainerStatus int

const (
	// Container struct instance has just been created
	INIT ContainerStatus = iota

	// Container image has been pulled to the local docker daemon, but the
	// container itself has not yet been created
	PULLED

	// Container has been created from a previously PULLED image
	CREATED

	// Container is UP and working normally
	UP

	// Container has CRASHED
	CRASHED

	// Container is being closed intentionally, next status should always be DOWN
	CLOSING

	// Container is DOWN (intentionally closed)
	DOWN

	// Container has been removed
	DEAD
)

func (e ContainerStatus) String() string {
	return []string{"INIT", "PULLED", "CREATED", "UP", "CRASHED", "CLOSING", "DOWN", "DEAD"}[e]
}

// pullEvent is the subset of the docker image-pull event stream Marquee
// surfaces in its logs.
type pullEvent struct {
	Status   string `json:"status"`
	Error    string `json:"error"`
	Progress string `json:"progress"`
}

type DockerContainer interface {
	// Start pulls the required image and creates and starts a container for
	// it. Monitoring of the running container happens asynchronously, so no
	// error is returned for crashes occurring after a successful start.
	Start(context.Context, client.APIClient) error

	// Close stops the running container (if running) and removes it from
	// the docker daemon.
	Close(context.Context, client.APIClient, time.Duration) error

	// MessageChannel streams the stdout/stderr of the running container.
	// The channel is closed once the container is DEAD.
	MessageChannel() chan []byte

	// StatusChannel broadcasts the container's status transitions; closed
	// shortly after a DEAD state is broadcast.
	StatusChannel() chan ContainerStatus

	Label() string

	// ID returns the container ID assigned by the daemon, empty until the
	// container has been created.
	ID() string

	Status() ContainerStatus
}

type dockerContainer struct {
	statusChannel  chan ContainerStatus
	messageChannel chan []byte
	label          string
	imageID        string
	containerID    string
	status         ContainerStatus
	conf           *dCont.Config
	hostConf       *dCont.HostConfig
}

// NewDockerContainer creates a container definition ready to be spawned
// through a DockerManager.
func NewDockerContainer(label string, imageID string, conf *dCont.Config, hostConf *dCont.HostConfig) DockerContainer {
	return &dockerContainer{
		statusChannel:  make(chan ContainerStatus, 5),
		messageChannel: make(chan []byte, 5),
		imageID:        imageID,
		conf:           conf,
		hostConf:       hostConf,
		status:         INIT,
		label:          label,
	}
}

func (cont *dockerContainer) Start(ctx context.Context, cli client.APIClient) error {
	if cont.status != INIT {
		return fmt.Errorf("cannot start container %s based on image %v as status is invalid", cont, cont.imageID)
	}

	out, err := cli.ImagePull(ctx, cont.imageID, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %v for container %s: %v", cont.imageID, cont, err.Error())
	}
	defer out.Close()

	// The pull blocks until its event stream closes; events are only logged
	eventStream := json.NewDecoder(out)
	for {
		var event pullEvent
		if err := eventStream.Decode(&event); err != nil {
			if err == io.EOF {
				break
			}

			return fmt.Errorf("failed to decode image pull event for container %s: %v", cont, err)
		}

		switch {
		case event.Error != "":
			dockerLogger.Emit(logger.ERROR, "%s: %s\n", cont, event.Error)
		case event.Progress != "":
			dockerLogger.Emit(logger.DEBUG, "%s: %s\n", cont, event.Progress)
		case event.Status != "":
			dockerLogger.Emit(logger.DEBUG, "%s: %s\n", cont, event.Status)
		}
	}
	cont.setStatus(PULLED)

	resp, err := cli.ContainerCreate(ctx, cont.conf, cont.hostConf, nil, nil, cont.label)
	if err != nil {
		return fmt.Errorf("failed to create container for %s: %v", cont, err.Error())
	}
	cont.containerID = resp.ID
	cont.setStatus(CREATED)

	if err := cli.ContainerStart(ctx, resp.ID, dCont.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container for %s: %v", cont, err.Error())
	}
	cont.setStatus(UP)

	go cont.monitorContainer(ctx, cli)
	return nil
}

func (cont *dockerContainer) Close(ctx context.Context, cli client.APIClient, timeout time.Duration) error {
	if cont.status == DEAD {
		return nil
	}

	if cont.canStop() {
		cont.setStatus(CLOSING)
		timeoutSeconds := int(timeout.Seconds())
		if err := cli.ContainerStop(ctx, cont.containerID, dCont.StopOptions{Timeout: &timeoutSeconds}); err != nil {
			return fmt.Errorf("failed to stop container %s: %v", cont, err.Error())
		}

		cont.setStatus(DOWN)
	}

	if cont.canRemove() {
		if err := cli.ContainerRemove(ctx, cont.containerID, dCont.RemoveOptions{}); err != nil {
			return fmt.Errorf("failed to remove container %s: %v", cont, err.Error())
		}
	}
	cont.setStatus(DEAD)

	close(cont.statusChannel)
	close(cont.messageChannel)

	return nil
}

func (cont *dockerContainer) MessageChannel() chan []byte {
	return cont.messageChannel
}

func (cont *dockerContainer) StatusChannel() chan ContainerStatus {
	return cont.statusChannel
}

func (cont *dockerContainer) ID() string {
	return cont.containerID
}

func (cont *dockerContainer) Label() string {
	return cont.label
}

func (cont *dockerContainer) Status() ContainerStatus {
	return cont.status
}

func (cont *dockerContainer) String() string {
	if cont.containerID == "" {
		return fmt.Sprintf("%v[...]", cont.label)
	}

	return fmt.Sprintf("%v[%v]", cont.label, cont.containerID[:10])
}

func (cont *dockerContainer) canStop() bool {
	return cont.status == CLOSING || cont.status == CREATED || cont.status == UP || cont.status == CRASHED
}

func (cont *dockerContainer) canRemove() bool {
	return cont.canStop() || cont.status == DOWN
}

func (cont *dockerContainer) setStatus(stat ContainerStatus) {
	if cont.status == DEAD {
		return
	}

	cont.status = stat
	cont.statusChannel <- cont.status
}

// monitorContainer follows the container's log stream, relaying output on
// the message channel. A stream ending while the container is still meant
// to be UP marks it CRASHED.
func (cont *dockerContainer) monitorContainer(ctx context.Context, cli client.APIClient) {
	reader, err := cli.ContainerLogs(ctx, cont.containerID, dCont.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		cont.setStatus(CRASHED)
		return
	}
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		if cont.status != UP {
			break
		}

		cont.messageChannel <- scanner.Bytes()
	}

	if cont.status != CLOSING {
		cont.setStatus(CRASHED)
	}
}
