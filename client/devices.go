package client

import (
	"context"
	"net/http"

	"github.com/cmgrayb/libdyson-rest/models"
)

// GetDevices fetches the account's device manifest. Devices are returned in
// the order the backend lists them.
func (c *Client) GetDevices(ctx context.Context) ([]models.Device, error) {
	if err := c.requireToken("getting devices"); err != nil {
		return nil, err
	}
	body, err := c.doJSON(ctx, http.MethodGet, "/v3/manifest", nil, nil, true)
	if err != nil {
		return nil, err
	}
	return models.ParseDevices(body)
}

// GetIoTCredentials fetches the AWS IoT connection material for one device
// serial. These parameters let a caller open its own remote MQTT connection;
// the message exchange itself is outside this library.
func (c *Client) GetIoTCredentials(ctx context.Context, serial string) (*models.IoTData, error) {
	if err := c.requireToken("getting IoT credentials"); err != nil {
		return nil, err
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/v2/authorize/iot-credentials", nil, map[string]string{"Serial": serial}, true)
	if err != nil {
		return nil, err
	}
	return models.ParseIoTData(body)
}

// GetPendingRelease fetches the firmware release staged for one device
// serial, if any.
func (c *Client) GetPendingRelease(ctx context.Context, serial string) (*models.PendingRelease, error) {
	if err := c.requireToken("getting pending release info"); err != nil {
		return nil, err
	}
	body, err := c.doJSON(ctx, http.MethodGet, "/v3/manifest/"+serial+"/pendingrelease", nil, nil, true)
	if err != nil {
		return nil, err
	}
	return models.ParsePendingRelease(body)
}

func (c *Client) requireToken(op string) error {
	if c.token == "" {
		return unauthorized("must authenticate before %s", op)
	}
	return nil
}
