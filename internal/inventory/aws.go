package inventory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/domain/spend"
	"github.com/costgov/costgov/internal/pkg/errors"
	"github.com/costgov/costgov/internal/pkg/logger"
)

// AWSCredentials selects static credentials when set; otherwise the default
// chain (environment, shared config, instance role) applies.
type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// AWSCollector lists EC2 instances, EBS volumes, snapshots, and S3 buckets.
type AWSCollector struct {
	creds   AWSCredentials
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewAWSCollector(creds AWSCredentials, limiter *rate.Limiter, log *logger.Logger) *AWSCollector {
	return &AWSCollector{creds: creds, limiter: limiter, log: log}
}

func (c *AWSCollector) Name() string { return resource.ProviderAWS }

func (c *AWSCollector) Collect(ctx context.Context) ([]*resource.Resource, error) {
	cfg, err := loadAWSConfig(ctx, c.creds, "")
	if err != nil {
		return nil, errors.ProviderError(resource.ProviderAWS, err)
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out []*resource.Resource
	)
	add := func(rs []*resource.Resource) {
		mu.Lock()
		out = append(out, rs...)
		mu.Unlock()
	}

	for _, fetch := range []func(context.Context, aws.Config) []*resource.Resource{
		c.fetchInstances, c.fetchVolumes, c.fetchSnapshots, c.fetchBuckets,
	} {
		wg.Add(1)
		go func(fetch func(context.Context, aws.Config) []*resource.Resource) {
			defer wg.Done()
			add(fetch(ctx, cfg))
		}(fetch)
	}
	wg.Wait()
	return out, ctx.Err()
}

func (c *AWSCollector) fetchInstances(ctx context.Context, cfg aws.Config) []*resource.Resource {
	var out []*resource.Resource
	client := ec2.NewFromConfig(cfg)
	p := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})
	for p.HasMorePages() {
		if err := c.limiter.Wait(ctx); err != nil {
			return out
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			c.log.ErrorWithErr(err, "aws describe instances failed")
			break
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				if inst.InstanceId == nil {
					continue
				}
				r := &resource.Resource{
					ID:        "aws/ec2/" + *inst.InstanceId,
					Type:      resource.TypeCompute,
					Provider:  resource.ProviderAWS,
					Region:    cfg.Region,
					Status:    instanceStatus(inst.State),
					Tags:      ec2Tags(inst.Tags),
					SizeClass: string(inst.InstanceType),
				}
				if inst.LaunchTime != nil {
					r.CreatedAt = *inst.LaunchTime
				}
				r.Name = r.Tags["Name"]
				out = append(out, r)
			}
		}
	}
	return out
}

func (c *AWSCollector) fetchVolumes(ctx context.Context, cfg aws.Config) []*resource.Resource {
	var out []*resource.Resource
	client := ec2.NewFromConfig(cfg)
	p := ec2.NewDescribeVolumesPaginator(client, &ec2.DescribeVolumesInput{})
	for p.HasMorePages() {
		if err := c.limiter.Wait(ctx); err != nil {
			return out
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			c.log.ErrorWithErr(err, "aws describe volumes failed")
			break
		}
		for _, vol := range page.Volumes {
			if vol.VolumeId == nil {
				continue
			}
			r := &resource.Resource{
				ID:       "aws/ebs/" + *vol.VolumeId,
				Type:     resource.TypeVolume,
				Provider: resource.ProviderAWS,
				Region:   cfg.Region,
				Status:   string(vol.State),
				Tags:     ec2Tags(vol.Tags),
				Attached: len(vol.Attachments) > 0,
			}
			if vol.CreateTime != nil {
				r.CreatedAt = *vol.CreateTime
			}
			r.Name = r.Tags["Name"]
			out = append(out, r)
		}
	}
	return out
}

func (c *AWSCollector) fetchSnapshots(ctx context.Context, cfg aws.Config) []*resource.Resource {
	var out []*resource.Resource
	client := ec2.NewFromConfig(cfg)
	p := ec2.NewDescribeSnapshotsPaginator(client, &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
	})
	for p.HasMorePages() {
		if err := c.limiter.Wait(ctx); err != nil {
			return out
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			c.log.ErrorWithErr(err, "aws describe snapshots failed")
			break
		}
		for _, snap := range page.Snapshots {
			if snap.SnapshotId == nil {
				continue
			}
			r := &resource.Resource{
				ID:       "aws/snapshot/" + *snap.SnapshotId,
				Type:     resource.TypeSnapshot,
				Provider: resource.ProviderAWS,
				Region:   cfg.Region,
				Status:   string(snap.State),
				Tags:     ec2Tags(snap.Tags),
			}
			if snap.StartTime != nil {
				r.CreatedAt = *snap.StartTime
			}
			r.Name = r.Tags["Name"]
			out = append(out, r)
		}
	}
	return out
}

func (c *AWSCollector) fetchBuckets(ctx context.Context, cfg aws.Config) []*resource.Resource {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}
	client := s3.NewFromConfig(cfg)
	resp, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		c.log.ErrorWithErr(err, "aws list buckets failed")
		return nil
	}
	var out []*resource.Resource
	for _, b := range resp.Buckets {
		if b.Name == nil {
			continue
		}
		r := &resource.Resource{
			ID:       "aws/s3/" + *b.Name,
			Name:     *b.Name,
			Type:     resource.TypeStorage,
			Provider: resource.ProviderAWS,
			Region:   cfg.Region,
			Status:   resource.StatusRunning,
		}
		if b.CreationDate != nil {
			r.CreatedAt = *b.CreationDate
		}
		out = append(out, r)
	}
	return out
}

// AWSSpendFeed serves period-to-date spend from Cost Explorer. The API is
// only reachable in us-east-1.
type AWSSpendFeed struct {
	creds   AWSCredentials
	limiter *rate.Limiter
}

func NewAWSSpendFeed(creds AWSCredentials, limiter *rate.Limiter) *AWSSpendFeed {
	return &AWSSpendFeed{creds: creds, limiter: limiter}
}

func (f *AWSSpendFeed) Name() string { return resource.ProviderAWS }

func (f *AWSSpendFeed) ScopeSpends(ctx context.Context, scopeTag string, periodStart, now time.Time) ([]spend.ScopeSpend, error) {
	cfg, err := loadAWSConfig(ctx, f.creds, "us-east-1")
	if err != nil {
		return nil, errors.ProviderError(resource.ProviderAWS, err)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(periodStart.UTC().Format("2006-01-02")),
			// The end date is exclusive; include the partial current day.
			End: aws.String(now.UTC().AddDate(0, 0, 1).Format("2006-01-02")),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{"UnblendedCost"},
	}
	if scopeTag != "" {
		input.GroupBy = []cetypes.GroupDefinition{{
			Type: cetypes.GroupDefinitionTypeTag,
			Key:  aws.String(scopeTag),
		}}
	}

	client := costexplorer.NewFromConfig(cfg)
	result, err := client.GetCostAndUsage(ctx, input)
	if err != nil {
		return nil, errors.ProviderError(resource.ProviderAWS, err)
	}

	acc := newSpendAccumulator()
	for _, byTime := range result.ResultsByTime {
		day, err := time.Parse("2006-01-02", aws.ToString(byTime.TimePeriod.Start))
		if err != nil {
			continue
		}
		if len(byTime.Groups) == 0 {
			if m, ok := byTime.Total["UnblendedCost"]; ok {
				acc.add(spend.TotalKey, day, parseAmount(m.Amount))
			}
			continue
		}
		for _, group := range byTime.Groups {
			key := spend.TotalKey
			if len(group.Keys) > 0 {
				// Tag group keys come back as "TagKey$value".
				if _, v, ok := strings.Cut(group.Keys[0], "$"); ok && v != "" {
					key = v
				}
			}
			if m, ok := group.Metrics["UnblendedCost"]; ok {
				acc.add(key, day, parseAmount(m.Amount))
			}
		}
	}
	return acc.scopes(), nil
}

func loadAWSConfig(ctx context.Context, creds AWSCredentials, regionOverride string) (aws.Config, error) {
	region := creds.Region
	if regionOverride != "" {
		region = regionOverride
	}
	if region == "" {
		region = "us-east-1"
	}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		return awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")),
		)
	}
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

func instanceStatus(s *ec2types.InstanceState) string {
	if s == nil {
		return resource.StatusUnknown
	}
	switch s.Name {
	case ec2types.InstanceStateNameRunning:
		return resource.StatusRunning
	case ec2types.InstanceStateNameStopped:
		return resource.StatusStopped
	default:
		return resource.StatusUnknown
	}
}

func ec2Tags(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		if t.Key != nil && t.Value != nil {
			out[*t.Key] = *t.Value
		}
	}
	return out
}

func parseAmount(s *string) float64 {
	if s == nil {
		return 0
	}
	v, _ := strconv.ParseFloat(*s, 64)
	return v
}
