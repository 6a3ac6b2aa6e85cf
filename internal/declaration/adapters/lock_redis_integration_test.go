//go:build integration

package adapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verdant/internal/declaration/adapters"
	"verdant/pkg/platform/sentinel"
	"verdant/pkg/testutil/containers"
)

type RedisLockerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *adapters.RedisSubmitLocker
}

func TestRedisLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockerSuite))
}

func (s *RedisLockerSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.locker = adapters.NewRedisSubmitLocker(s.redis.Client)
}

func (s *RedisLockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockerSuite) TestExclusive() {
	ctx := context.Background()
	lock, err := s.locker.Obtain(ctx, "declaration:submit:a", time.Minute)
	s.Require().NoError(err)

	_, err = s.locker.Obtain(ctx, "declaration:submit:a", time.Minute)
	s.ErrorIs(err, sentinel.ErrConflict)

	s.Require().NoError(lock.Release(ctx))
	again, err := s.locker.Obtain(ctx, "declaration:submit:a", time.Minute)
	s.Require().NoError(err)
	s.NoError(again.Release(ctx))
}

func (s *RedisLockerSuite) TestReleaseAfterExpiryIsNotAnError() {
	ctx := context.Background()
	lock, err := s.locker.Obtain(ctx, "declaration:submit:b", 50*time.Millisecond)
	s.Require().NoError(err)
	time.Sleep(100 * time.Millisecond)
	s.NoError(lock.Release(ctx))
}
