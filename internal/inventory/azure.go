package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	armcompute "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	armresources "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	armstorage "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"golang.org/x/time/rate"

	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/domain/spend"
	"github.com/costgov/costgov/internal/pkg/errors"
	"github.com/costgov/costgov/internal/pkg/logger"
)

// AzureCredentials holds a service principal plus the subscription to scan.
type AzureCredentials struct {
	TenantID       string
	ClientID       string
	ClientSecret   string
	SubscriptionID string
	Location       string
}

// AzureCollector lists virtual machines and storage accounts per resource
// group.
type AzureCollector struct {
	creds   AzureCredentials
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewAzureCollector(creds AzureCredentials, limiter *rate.Limiter, log *logger.Logger) *AzureCollector {
	return &AzureCollector{creds: creds, limiter: limiter, log: log}
}

func (c *AzureCollector) Name() string { return resource.ProviderAzure }

func (c *AzureCollector) Collect(ctx context.Context) ([]*resource.Resource, error) {
	cred, err := azidentity.NewClientSecretCredential(c.creds.TenantID, c.creds.ClientID, c.creds.ClientSecret, nil)
	if err != nil {
		return nil, errors.ProviderError(resource.ProviderAzure, err)
	}

	rgClient, err := armresources.NewResourceGroupsClient(c.creds.SubscriptionID, cred, nil)
	if err != nil {
		return nil, errors.ProviderError(resource.ProviderAzure, err)
	}
	vmClient, err := armcompute.NewVirtualMachinesClient(c.creds.SubscriptionID, cred, nil)
	if err != nil {
		return nil, errors.ProviderError(resource.ProviderAzure, err)
	}
	stClient, err := armstorage.NewAccountsClient(c.creds.SubscriptionID, cred, nil)
	if err != nil {
		return nil, errors.ProviderError(resource.ProviderAzure, err)
	}

	var out []*resource.Resource
	rgPager := rgClient.NewListPager(nil)
	for rgPager.More() {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}
		page, err := rgPager.NextPage(ctx)
		if err != nil {
			c.log.ErrorWithErr(err, "azure list resource groups failed")
			break
		}
		for _, rg := range page.Value {
			if rg.Name == nil {
				continue
			}
			out = append(out, c.fetchVMs(ctx, vmClient, *rg.Name)...)
			out = append(out, c.fetchStorageAccounts(ctx, stClient, *rg.Name)...)
		}
	}
	return out, ctx.Err()
}

func (c *AzureCollector) fetchVMs(ctx context.Context, client *armcompute.VirtualMachinesClient, group string) []*resource.Resource {
	var out []*resource.Resource
	pager := client.NewListPager(group, nil)
	for pager.More() {
		if err := c.limiter.Wait(ctx); err != nil {
			return out
		}
		page, err := pager.NextPage(ctx)
		if err != nil {
			c.log.ErrorWithErr(err, "azure list vms failed")
			break
		}
		for _, vm := range page.Value {
			if vm.ID == nil {
				continue
			}
			r := &resource.Resource{
				ID:       "azure/vm" + *vm.ID,
				Type:     resource.TypeCompute,
				Provider: resource.ProviderAzure,
				Region:   c.creds.Location,
				Status:   resource.StatusUnknown,
				Tags:     azureTags(vm.Tags),
			}
			if vm.Name != nil {
				r.Name = *vm.Name
			}
			if vm.Location != nil && *vm.Location != "" {
				r.Region = *vm.Location
			}
			if vm.Properties != nil {
				if vm.Properties.HardwareProfile != nil && vm.Properties.HardwareProfile.VMSize != nil {
					r.SizeClass = string(*vm.Properties.HardwareProfile.VMSize)
				}
				if vm.Properties.TimeCreated != nil {
					r.CreatedAt = *vm.Properties.TimeCreated
				}
			}
			out = append(out, r)
		}
	}
	return out
}

func (c *AzureCollector) fetchStorageAccounts(ctx context.Context, client *armstorage.AccountsClient, group string) []*resource.Resource {
	var out []*resource.Resource
	pager := client.NewListByResourceGroupPager(group, nil)
	for pager.More() {
		if err := c.limiter.Wait(ctx); err != nil {
			return out
		}
		page, err := pager.NextPage(ctx)
		if err != nil {
			c.log.ErrorWithErr(err, "azure list storage accounts failed")
			break
		}
		for _, acc := range page.Value {
			if acc.ID == nil {
				continue
			}
			r := &resource.Resource{
				ID:       "azure/storage" + *acc.ID,
				Type:     resource.TypeStorage,
				Provider: resource.ProviderAzure,
				Region:   c.creds.Location,
				Status:   resource.StatusRunning,
				Tags:     azureTags(acc.Tags),
			}
			if acc.Name != nil {
				r.Name = *acc.Name
			}
			if acc.Location != nil && *acc.Location != "" {
				r.Region = *acc.Location
			}
			if acc.Properties != nil && acc.Properties.CreationTime != nil {
				r.CreatedAt = *acc.Properties.CreationTime
			}
			out = append(out, r)
		}
	}
	return out
}

// AzureSpendFeed serves period-to-date spend from Cost Management.
type AzureSpendFeed struct {
	creds   AzureCredentials
	limiter *rate.Limiter
}

func NewAzureSpendFeed(creds AzureCredentials, limiter *rate.Limiter) *AzureSpendFeed {
	return &AzureSpendFeed{creds: creds, limiter: limiter}
}

func (f *AzureSpendFeed) Name() string { return resource.ProviderAzure }

func (f *AzureSpendFeed) ScopeSpends(ctx context.Context, scopeTag string, periodStart, now time.Time) ([]spend.ScopeSpend, error) {
	cred, err := azidentity.NewClientSecretCredential(f.creds.TenantID, f.creds.ClientID, f.creds.ClientSecret, nil)
	if err != nil {
		return nil, errors.ProviderError(resource.ProviderAzure, err)
	}
	client, err := armcostmanagement.NewQueryClient(cred, nil)
	if err != nil {
		return nil, errors.ProviderError(resource.ProviderAzure, err)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	from := periodStart.UTC()
	to := now.UTC()
	sumFunc := armcostmanagement.FunctionTypeSum
	granularity := armcostmanagement.GranularityTypeDaily
	timeframe := armcostmanagement.TimeframeTypeCustom
	exportType := armcostmanagement.ExportTypeActualCost

	dataset := &armcostmanagement.QueryDataset{
		Granularity: &granularity,
		Aggregation: map[string]*armcostmanagement.QueryAggregation{
			"PreTaxCost": {Name: ptr("PreTaxCost"), Function: &sumFunc},
		},
	}
	if scopeTag != "" {
		tagType := armcostmanagement.QueryColumnTypeTag
		dataset.Grouping = []*armcostmanagement.QueryGrouping{
			{Type: &tagType, Name: ptr(scopeTag)},
		}
	}

	result, err := client.Usage(ctx, fmt.Sprintf("subscriptions/%s", f.creds.SubscriptionID), armcostmanagement.QueryDefinition{
		Type:       &exportType,
		Timeframe:  &timeframe,
		TimePeriod: &armcostmanagement.QueryTimePeriod{From: &from, To: &to},
		Dataset:    dataset,
	}, nil)
	if err != nil {
		return nil, errors.ProviderError(resource.ProviderAzure, err)
	}
	if result.Properties == nil || result.Properties.Rows == nil {
		return nil, nil
	}

	colIndex := map[string]int{}
	for i, col := range result.Properties.Columns {
		if col.Name != nil {
			colIndex[*col.Name] = i
		}
	}
	costIdx, hasCost := colIndex["PreTaxCost"]
	tagIdx, hasTag := colIndex[scopeTag]
	dateIdx, hasDate := colIndex["UsageDateKey"]
	if !hasDate {
		dateIdx, hasDate = colIndex["UsageDate"]
	}
	if !hasCost || !hasDate {
		return nil, nil
	}

	acc := newSpendAccumulator()
	for _, row := range result.Properties.Rows {
		if costIdx >= len(row) || dateIdx >= len(row) {
			continue
		}
		amount, ok := row[costIdx].(float64)
		if !ok {
			continue
		}
		day := parseAzureDate(row[dateIdx])
		if day.IsZero() {
			continue
		}
		key := spend.TotalKey
		if hasTag && tagIdx < len(row) {
			if v, ok := row[tagIdx].(string); ok && v != "" {
				key = v
			}
		}
		acc.add(key, day, amount)
	}
	return acc.scopes(), nil
}

// parseAzureDate handles both row encodings Cost Management uses: a
// YYYYMMDD integer or an ISO date string.
func parseAzureDate(v interface{}) time.Time {
	switch d := v.(type) {
	case float64:
		dateInt := int(d)
		return time.Date(dateInt/10000, time.Month((dateInt%10000)/100), dateInt%100, 0, 0, 0, 0, time.UTC)
	case string:
		t, _ := time.Parse("2006-01-02", d)
		return t
	}
	return time.Time{}
}

func azureTags(tags map[string]*string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func ptr(s string) *string { return &s }
