package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	smithy "github.com/aws/smithy-go"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	coreprovider "github.com/artpar/clusterdeploy/internal/core/provider"
	"github.com/artpar/clusterdeploy/internal/shell/network"
)

// AWSScopeTag is the security group tag that places a group in a scope.
const AWSScopeTag = "resource-group"

// AWSRemote implements network.Remote over EC2 security groups. Load
// balancers live in a separate AWS API and are not managed.
type AWSRemote struct {
	client *ec2.Client
	logger *slog.Logger
}

// NewAWSRemote creates a new AWS remote for region.
func NewAWSRemote(creds coreprovider.AWSCredentials, region string, logger *slog.Logger) *AWSRemote {
	return &AWSRemote{
		client: ec2.New(ec2.Options{
			Region:      region,
			Credentials: credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		}),
		logger: logger.With("provider", "aws"),
	}
}

// ListRuleGroups returns the security groups tagged with scope.
func (p *AWSRemote) ListRuleGroups(ctx context.Context, scope string) ([]domain.RuleGroup, error) {
	input := &ec2.DescribeSecurityGroupsInput{}
	if scope != "" {
		input.Filters = []ec2types.Filter{
			{Name: aws.String("tag:" + AWSScopeTag), Values: []string{scope}},
		}
	}

	var groups []domain.RuleGroup
	paginator := ec2.NewDescribeSecurityGroupsPaginator(p.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, network.NewRemoteError("ListRuleGroups", "aws", scope, err)
		}
		for _, sg := range out.SecurityGroups {
			groups = append(groups, securityGroupToRuleGroup(sg))
		}
	}
	return groups, nil
}

// ListLoadBalancers returns nothing: the reconciler skips the load balancer pass.
func (p *AWSRemote) ListLoadBalancers(ctx context.Context, scope string) ([]domain.LoadBalancer, error) {
	return nil, nil
}

// ApplyRuleGroup authorizes ingress for every desired rule the group lacks.
func (p *AWSRemote) ApplyRuleGroup(ctx context.Context, group domain.RuleGroup) error {
	out, err := p.client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{group.ID},
	})
	if err != nil {
		return network.NewRemoteError("ApplyRuleGroup", "aws", group.Name, err)
	}
	if len(out.SecurityGroups) == 0 {
		return network.NewRemoteError("ApplyRuleGroup", "aws", group.Name,
			fmt.Errorf("security group %s not found", group.ID))
	}

	rules := missingRules(group, securityGroupToRuleGroup(out.SecurityGroups[0]))
	var permissions []ec2types.IpPermission
	for _, r := range rules {
		if !r.IsInboundAllow() {
			continue
		}
		permissions = append(permissions, ruleToPermissions(r)...)
	}
	if len(permissions) == 0 {
		return nil
	}

	_, err = p.client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(group.ID),
		IpPermissions: permissions,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidPermission.Duplicate" {
			p.logger.Info("security group rule already present", "group_id", group.ID)
			return nil
		}
		return network.NewRemoteError("ApplyRuleGroup", "aws", group.Name, err)
	}

	p.logger.Info("security group ingress authorized", "group_id", group.ID, "permissions", len(permissions))
	return nil
}

// ApplyLoadBalancer is not supported on AWS.
func (p *AWSRemote) ApplyLoadBalancer(ctx context.Context, lb domain.LoadBalancer) error {
	return network.NewRemoteError("ApplyLoadBalancer", "aws", lb.Name, network.ErrUnsupported)
}

func securityGroupToRuleGroup(sg ec2types.SecurityGroup) domain.RuleGroup {
	group := domain.RuleGroup{
		ID:   aws.ToString(sg.GroupId),
		Name: aws.ToString(sg.GroupName),
	}
	add := func(perm ec2types.IpPermission, direction domain.Direction) {
		protocol := aws.ToString(perm.IpProtocol)
		dest := domain.AnyPort()
		if protocol == "-1" {
			protocol = domain.Wildcard
		} else if perm.FromPort != nil && aws.ToInt32(perm.FromPort) >= 0 {
			dest = domain.PortRange(int(aws.ToInt32(perm.FromPort)), int(aws.ToInt32(perm.ToPort)))
		}

		ranges := perm.IpRanges
		if len(ranges) == 0 {
			ranges = []ec2types.IpRange{{}}
		}
		for _, ipr := range ranges {
			name := aws.ToString(ipr.Description)
			if name == "" {
				name = listedRuleName(dest)
			}
			group.Rules = append(group.Rules, domain.NetworkRule{
				Name:        name,
				Priority:    listedPriority(len(group.Rules)),
				Protocol:    protocol,
				Destination: dest,
				Source:      listedSource(aws.ToString(ipr.CidrIp)),
				Access:      domain.AccessAllow,
				Direction:   direction,
			})
		}
	}
	for _, perm := range sg.IpPermissions {
		add(perm, domain.DirectionInbound)
	}
	for _, perm := range sg.IpPermissionsEgress {
		add(perm, domain.DirectionOutbound)
	}
	return group
}

// ruleToPermissions converts a rule; the rule name is kept as the range
// description so later listings report it.
func ruleToPermissions(r domain.NetworkRule) []ec2types.IpPermission {
	cidr := anyIPv4
	if r.Source != domain.AnySource && r.Source != "" {
		cidr = r.Source
	}
	ipRanges := []ec2types.IpRange{{CidrIp: aws.String(cidr), Description: aws.String(r.Name)}}

	if r.Destination.Kind == domain.PortSpecWildcard && r.Protocol == domain.Wildcard {
		return []ec2types.IpPermission{{IpProtocol: aws.String("-1"), IpRanges: ipRanges}}
	}

	from, to := int32(r.Destination.From), int32(r.Destination.To)
	if r.Destination.Kind == domain.PortSpecWildcard {
		from, to = 0, domain.MaxPort
	}
	var perms []ec2types.IpPermission
	for _, proto := range ruleProtocols(r.Protocol) {
		perms = append(perms, ec2types.IpPermission{
			IpProtocol: aws.String(proto),
			FromPort:   aws.Int32(from),
			ToPort:     aws.Int32(to),
			IpRanges:   ipRanges,
		})
	}
	return perms
}
