package etcd

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// NewClient connects to etcd and checks that the first endpoint answers within timeout.
func NewClient(endpoints []string, timeout time.Duration) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := cli.Status(ctx, endpoints[0]); err != nil {
		cli.Close()
		return nil, fmt.Errorf("etcd endpoint %s unreachable: %w", endpoints[0], err)
	}
	return cli, nil
}
