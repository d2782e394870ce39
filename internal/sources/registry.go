package sources

import (
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/vslobodin/channel-mirror-bot/internal/models"
)

// Sources on the same platform share one HTTP client (connection pool,
// timeouts, identity headers). The client is created exactly once no matter
// which source touches the platform first.
var (
	clientsMu sync.Mutex
	clients   = make(map[models.Platform]*resty.Client)
)

func sharedClient(platform models.Platform) *resty.Client {
	clientsMu.Lock()
	defer clientsMu.Unlock()

	if client, ok := clients[platform]; ok {
		return client
	}

	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "channel-mirror-bot/1.0")
	clients[platform] = client

	logrus.Debugf("shared %s client created", platform)
	return client
}
